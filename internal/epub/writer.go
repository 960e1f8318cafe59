package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// UpdateMetadata rewrites the OPF document of an EPUB file with the
// non-empty fields of meta. Every other entry is copied unchanged.
func UpdateMetadata(filePath string, meta *Metadata) error {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return fmt.Errorf("failed to open epub: %w", err)
	}
	defer r.Close()

	opfPath, err := packagePath(&r.Reader)
	if err != nil {
		return err
	}
	opfFile, err := findFile(&r.Reader, opfPath)
	if err != nil {
		return fmt.Errorf("failed to find OPF file: %w", err)
	}
	opfContent, err := io.ReadAll(opfFile)
	opfFile.Close()
	if err != nil {
		return fmt.Errorf("failed to read OPF file: %w", err)
	}

	updated := updateOPFContent(string(opfContent), meta)

	// Write next to the original so the final rename stays on one device
	tmpFile, err := os.CreateTemp(filepath.Dir(filePath), ".epub-update-*.epub")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := rewriteArchive(tmpFile, &r.Reader, opfPath, []byte(updated)); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	return nil
}

// rewriteArchive copies every entry of src to dst, substituting opf for the
// package document. The mimetype entry keeps its stored method and position.
func rewriteArchive(dst io.Writer, src *zip.Reader, opfPath string, opf []byte) error {
	w := zip.NewWriter(dst)

	for _, f := range src.File {
		header := &zip.FileHeader{
			Name:   f.Name,
			Method: f.Method,
		}
		header.Modified = f.Modified

		out, err := w.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", f.Name, err)
		}

		if f.Name == opfPath {
			_, err = out.Write(opf)
		} else {
			err = copyEntry(out, f)
		}
		if err != nil {
			return fmt.Errorf("failed to write file %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

func copyEntry(dst io.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(dst, rc)
	return err
}

// updateOPFContent modifies the OPF XML with new metadata values
func updateOPFContent(opf string, meta *Metadata) string {
	if meta.Title != "" {
		opf = replaceOrInsertDCElement(opf, "title", escapeXML(meta.Title))
	}
	if len(meta.Authors) > 0 {
		opf = replaceAll(opf, "creator", meta.Authors)
	}
	if meta.ISBN != "" {
		opf = updateIdentifier(opf, "ISBN", meta.ISBN)
	}
	if meta.CatalogID != "" {
		opf = updateIdentifier(opf, "ALADIN", meta.CatalogID)
	}
	if meta.Publisher != "" {
		opf = replaceOrInsertDCElement(opf, "publisher", escapeXML(meta.Publisher))
	}
	if meta.Language != "" {
		opf = replaceOrInsertDCElement(opf, "language", escapeXML(meta.Language))
	}
	if meta.PublishDate != "" {
		opf = replaceOrInsertDCElement(opf, "date", meta.PublishDate)
	}
	if meta.Description != "" {
		opf = replaceOrInsertDCElement(opf, "description", escapeXML(meta.Description))
	}
	if meta.Series != "" {
		opf = updateCalibreMeta(opf, "calibre:series", escapeXML(meta.Series))
		opf = updateCalibreMeta(opf, "calibre:series_index", strconv.FormatFloat(meta.SeriesIndex, 'f', 1, 64))
	}
	if meta.Rating > 0 {
		opf = updateCalibreMeta(opf, "calibre:rating", strconv.FormatFloat(meta.Rating*2, 'f', -1, 64))
	}
	if len(meta.Subjects) > 0 {
		opf = replaceAll(opf, "subject", meta.Subjects)
	}

	return opf
}

var (
	metadataOpenRe  = regexp.MustCompile(`(?i)(<metadata[^>]*>)`)
	metadataCloseRe = regexp.MustCompile(`(?i)(</metadata>)`)
)

// replaceOrInsertDCElement replaces or inserts a Dublin Core element
func replaceOrInsertDCElement(opf, element, value string) string {
	patterns := []string{
		fmt.Sprintf(`(?i)(<dc:%s[^>]*>)[^<]*(</dc:%s>)`, element, element),
		fmt.Sprintf(`(?i)(<%s[^>]*>)[^<]*(</%s>)`, element, element),
	}

	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		if loc := re.FindStringSubmatchIndex(opf); loc != nil {
			// first occurrence only
			return opf[:loc[3]] + value + opf[loc[4]:]
		}
	}

	if loc := metadataOpenRe.FindStringIndex(opf); loc != nil {
		return opf[:loc[1]] + fmt.Sprintf("\n    <dc:%s>%s</dc:%s>", element, value, element) + opf[loc[1]:]
	}
	return opf
}

// replaceAll drops every dc:element and inserts one per value before </metadata>
func replaceAll(opf, element string, values []string) string {
	existing := regexp.MustCompile(fmt.Sprintf(`(?i)\s*<dc:%s[^>]*>[^<]*</dc:%s>`, element, element))
	opf = existing.ReplaceAllString(opf, "")

	var tags strings.Builder
	for _, v := range values {
		fmt.Fprintf(&tags, "    <dc:%s>%s</dc:%s>\n", element, escapeXML(v), element)
	}
	return insertBeforeClose(opf, tags.String()+"  ")
}

// updateIdentifier updates or adds the dc:identifier for scheme
func updateIdentifier(opf, scheme, value string) string {
	schemeRe := regexp.MustCompile(fmt.Sprintf(`(?i)(<dc:identifier[^>]*scheme=["']%s["'][^>]*>)[^<]*(</dc:identifier>)`, regexp.QuoteMeta(scheme)))
	if loc := schemeRe.FindStringSubmatchIndex(opf); loc != nil {
		return opf[:loc[3]] + value + opf[loc[4]:]
	}

	if scheme == "ISBN" {
		urnRe := regexp.MustCompile(`(?i)(<dc:identifier[^>]*>)urn:isbn:[^<]*(</dc:identifier>)`)
		if loc := urnRe.FindStringSubmatchIndex(opf); loc != nil {
			return opf[:loc[3]] + "urn:isbn:" + value + opf[loc[4]:]
		}
	}

	if loc := metadataOpenRe.FindStringIndex(opf); loc != nil {
		tag := fmt.Sprintf("\n    <dc:identifier opf:scheme=\"%s\">%s</dc:identifier>", scheme, escapeXML(value))
		return opf[:loc[1]] + tag + opf[loc[1]:]
	}
	return opf
}

// updateCalibreMeta updates or adds calibre-style meta tags
func updateCalibreMeta(opf, name, value string) string {
	quoted := regexp.QuoteMeta(name)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)(<meta\s+name=["']%s["']\s+content=["'])[^"']*(["'][^>]*/>)`, quoted)),
		regexp.MustCompile(fmt.Sprintf(`(?i)(<meta\s+content=["'])[^"']*(["']\s+name=["']%s["'][^>]*/>)`, quoted)),
	}
	for _, re := range patterns {
		if loc := re.FindStringSubmatchIndex(opf); loc != nil {
			return opf[:loc[3]] + value + opf[loc[4]:]
		}
	}

	return insertBeforeClose(opf, fmt.Sprintf("    <meta name=\"%s\" content=\"%s\"/>\n  ", name, value))
}

func insertBeforeClose(opf, fragment string) string {
	loc := metadataCloseRe.FindStringIndex(opf)
	if loc == nil {
		return opf
	}
	return opf[:loc[0]] + fragment + opf[loc[0]:]
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXML escapes special XML characters
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
