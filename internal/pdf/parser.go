package pdf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Metadata is the document information dictionary of a PDF
type Metadata struct {
	Title     string
	Authors   []string
	Subject   string
	Keywords  []string
	PageCount int
}

// ReadMetadata extracts metadata from a PDF file. A PDF without a title
// falls back to the file name.
func ReadMetadata(filePath string) (*Metadata, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := api.PDFInfo(f, filePath, nil, false, model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		Title:     strings.TrimSpace(info.Title),
		Authors:   SplitAuthors(info.Author),
		Subject:   strings.TrimSpace(info.Subject),
		Keywords:  info.Keywords,
		PageCount: info.PageCount,
	}
	if meta.Title == "" {
		meta.Title = titleFromFilename(filePath)
	}
	return meta, nil
}

// UpdateMetadata writes the non-empty fields of meta into the PDF's
// information dictionary in place
func UpdateMetadata(filePath string, meta *Metadata) error {
	props := properties(meta)
	if len(props) == 0 {
		return nil
	}
	return api.AddPropertiesFile(filePath, "", props, model.NewDefaultConfiguration())
}

func properties(meta *Metadata) map[string]string {
	properties := make(map[string]string)
	if meta.Title != "" {
		properties["Title"] = meta.Title
	}
	if len(meta.Authors) > 0 {
		properties["Author"] = strings.Join(meta.Authors, " & ")
	}
	if meta.Subject != "" {
		properties["Subject"] = meta.Subject
	}
	if len(meta.Keywords) > 0 {
		properties["Keywords"] = strings.Join(meta.Keywords, ", ")
	}
	return properties
}

// SplitAuthors splits an Author entry holding several names joined by
// "&" or ";"
func SplitAuthors(s string) []string {
	var authors []string
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '&' || r == ';' }) {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func titleFromFilename(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
