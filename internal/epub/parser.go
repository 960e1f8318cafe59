package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoPackage is returned when container.xml names no OPF document
var ErrNoPackage = errors.New("no rootfile found in container.xml")

// Metadata is the book metadata carried in an EPUB's OPF document
type Metadata struct {
	Title       string
	Authors     []string
	ISBN        string
	CatalogID   string
	Publisher   string
	Language    string
	PublishDate string
	Description string
	Subjects    []string
	Series      string
	SeriesIndex float64
	Rating      float64 // 0 - 5, zero when absent
}

// container represents the META-INF/container.xml structure
type container struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage represents the metadata section of the OPF package document
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Title   []string `xml:"title"`
		Creator []struct {
			Value string `xml:",chardata"`
			Role  string `xml:"role,attr"`
		} `xml:"creator"`
		Meta []struct {
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Property string `xml:"property,attr"`
			Value    string `xml:",chardata"`
		} `xml:"meta"`
		Identifier []struct {
			Value  string `xml:",chardata"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Description []string `xml:"description"`
		Publisher   []string `xml:"publisher"`
		Language    []string `xml:"language"`
		Date        []string `xml:"date"`
		Subject     []string `xml:"subject"`
	} `xml:"metadata"`
}

// ReadMetadata extracts metadata from an EPUB file
func ReadMetadata(filePath string) (*Metadata, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	opfPath, err := packagePath(&r.Reader)
	if err != nil {
		return nil, err
	}
	opfFile, err := findFile(&r.Reader, opfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find OPF file: %w", err)
	}
	defer opfFile.Close()

	pkg := &opfPackage{}
	if err := xml.NewDecoder(opfFile).Decode(pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF file: %w", err)
	}
	return pkg.metadata(), nil
}

func (pkg *opfPackage) metadata() *Metadata {
	md := pkg.Metadata
	meta := &Metadata{}

	if len(md.Title) > 0 {
		meta.Title = strings.TrimSpace(md.Title[0])
	}

	// Creators without a role, or marked aut, are authors
	for _, creator := range md.Creator {
		name := strings.TrimSpace(creator.Value)
		if name != "" && (creator.Role == "" || creator.Role == "aut") {
			meta.Authors = append(meta.Authors, name)
		}
	}

	for _, ident := range md.Identifier {
		value := strings.TrimSpace(ident.Value)
		switch scheme := strings.ToUpper(ident.Scheme); {
		case scheme == "ALADIN" || scheme == "ALADIN.CO.KR":
			meta.CatalogID = value
		case scheme == "ISBN" || strings.HasPrefix(strings.ToUpper(value), "URN:ISBN:"):
			meta.ISBN = normalizeISBN(value)
		case meta.ISBN == "":
			meta.ISBN = extractISBN(value)
		}
	}

	if len(md.Description) > 0 {
		meta.Description = StripHTML(strings.TrimSpace(md.Description[0]))
	}
	if len(md.Publisher) > 0 {
		meta.Publisher = strings.TrimSpace(md.Publisher[0])
	}
	if len(md.Language) > 0 {
		meta.Language = strings.TrimSpace(md.Language[0])
	}
	if len(md.Date) > 0 {
		meta.PublishDate = strings.TrimSpace(md.Date[0])
	}
	for _, subj := range md.Subject {
		if trimmed := strings.TrimSpace(subj); trimmed != "" {
			meta.Subjects = append(meta.Subjects, trimmed)
		}
	}

	for _, m := range md.Meta {
		switch {
		case m.Name == "calibre:series":
			meta.Series = m.Content
		case m.Name == "calibre:series_index":
			meta.SeriesIndex = parseFloat(m.Content)
		case m.Name == "calibre:rating":
			// calibre stores ratings out of ten
			meta.Rating = parseFloat(m.Content) / 2
		case m.Property == "belongs-to-collection":
			meta.Series = strings.TrimSpace(m.Value)
		case m.Property == "group-position":
			meta.SeriesIndex = parseFloat(m.Value)
		}
	}

	return meta
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// packagePath returns the OPF document path named by container.xml
func packagePath(r *zip.Reader) (string, error) {
	containerFile, err := findFile(r, "META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("failed to find container.xml: %w", err)
	}
	defer containerFile.Close()

	c := &container{}
	if err := xml.NewDecoder(containerFile).Decode(c); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	if len(c.RootFiles) == 0 {
		return "", ErrNoPackage
	}
	return c.RootFiles[0].FullPath, nil
}

func findFile(r *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range r.File {
		if f.Name == name || strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, os.ErrNotExist
}

// normalizeISBN cleans an ISBN string
func normalizeISBN(isbn string) string {
	isbn = strings.TrimPrefix(strings.ToLower(isbn), "urn:isbn:")
	isbn = strings.ToUpper(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.ReplaceAll(isbn, ".", "")
	return strings.TrimSpace(isbn)
}

var (
	// 978 or 979 prefix followed by 10 digits
	isbn13Re = regexp.MustCompile(`(?:978|979)[-\s]?(?:\d[-\s]?){9}\d`)
	// 9 digits followed by digit or X
	isbn10Re = regexp.MustCompile(`\d[-\s]?(?:\d[-\s]?){8}[\dXx]`)
)

// extractISBN attempts to find an ISBN pattern in a string
func extractISBN(s string) string {
	if match := isbn13Re.FindString(s); match != "" {
		return normalizeISBN(match)
	}
	if match := isbn10Re.FindString(s); match != "" {
		return normalizeISBN(match)
	}
	return ""
}

var (
	scriptRe  = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>`)
	styleRe   = regexp.MustCompile(`(?i)<style[^>]*>[\s\S]*?</style>`)
	blockRe   = regexp.MustCompile(`(?i)</(p|div|br|h[1-6]|li|tr)>`)
	brRe      = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n\s*\n+`)
)

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// StripHTML removes HTML tags and returns plain text
func StripHTML(html string) string {
	html = scriptRe.ReplaceAllString(html, "")
	html = styleRe.ReplaceAllString(html, "")

	html = blockRe.ReplaceAllString(html, "\n")
	html = brRe.ReplaceAllString(html, "\n")
	html = tagRe.ReplaceAllString(html, "")
	html = entities.Replace(html)

	html = spaceRe.ReplaceAllString(html, " ")
	html = newlineRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
