// Package bookfile reads lookup hints from local book files and writes
// identified metadata back into them.
package bookfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/justyntemme/aladinkr/internal/epub"
	"github.com/justyntemme/aladinkr/internal/metadata"
	"github.com/justyntemme/aladinkr/internal/pdf"
)

// ErrUnsupported is returned for file types other than EPUB and PDF
var ErrUnsupported = errors.New("unsupported book format")

// Request builds an identify request from the metadata embedded in a book file
func Request(path string) (metadata.IdentifyRequest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		meta, err := epub.ReadMetadata(path)
		if err != nil {
			return metadata.IdentifyRequest{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return epubRequest(meta), nil
	case ".pdf":
		meta, err := pdf.ReadMetadata(path)
		if err != nil {
			return metadata.IdentifyRequest{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return pdfRequest(meta), nil
	}
	return metadata.IdentifyRequest{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

func epubRequest(meta *epub.Metadata) metadata.IdentifyRequest {
	req := metadata.IdentifyRequest{
		Title:       meta.Title,
		Authors:     meta.Authors,
		Identifiers: map[string]string{},
	}
	if isbn, ok := metadata.CheckISBN(meta.ISBN); ok {
		req.Identifiers[metadata.IdentifierISBN] = isbn
	}
	if meta.CatalogID != "" {
		req.Identifiers[metadata.IdentifierCatalog] = meta.CatalogID
	}
	return req
}

func pdfRequest(meta *pdf.Metadata) metadata.IdentifyRequest {
	req := metadata.IdentifyRequest{
		Title:       meta.Title,
		Authors:     meta.Authors,
		Identifiers: map[string]string{},
	}
	text := meta.Subject + " " + strings.Join(meta.Keywords, " ")
	if isbn := metadata.FindISBN(text); isbn != "" {
		req.Identifiers[metadata.IdentifierISBN] = isbn
	}
	return req
}

// Apply writes rec into the book file at path
func Apply(path string, rec *metadata.MetadataRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return epub.UpdateMetadata(path, epubMetadata(rec))
	case ".pdf":
		return pdf.UpdateMetadata(path, pdfMetadata(rec))
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, path)
}

func epubMetadata(rec *metadata.MetadataRecord) *epub.Metadata {
	meta := &epub.Metadata{
		Title:       rec.Title,
		Authors:     rec.Authors,
		ISBN:        rec.Identifiers[metadata.IdentifierISBN],
		CatalogID:   rec.CatalogID(),
		Publisher:   rec.Publisher,
		Description: rec.Comments,
		Subjects:    rec.Tags,
	}
	if rec.HasPublishDate() {
		meta.PublishDate = rec.PublishDate.Format("2006-01-02")
	}
	if len(rec.Languages) > 0 {
		meta.Language = languageCode(rec.Languages[0])
	}
	if rec.Series != nil {
		meta.Series = rec.Series.Name
		meta.SeriesIndex = rec.Series.Index
	}
	if rec.Rating != nil {
		meta.Rating = *rec.Rating
	}
	return meta
}

func pdfMetadata(rec *metadata.MetadataRecord) *pdf.Metadata {
	meta := &pdf.Metadata{
		Title:    rec.Title,
		Authors:  rec.Authors,
		Subject:  rec.Publisher,
		Keywords: append([]string(nil), rec.Tags...),
	}
	if isbn := rec.Identifiers[metadata.IdentifierISBN]; isbn != "" {
		meta.Keywords = append(meta.Keywords, "isbn:"+isbn)
	}
	return meta
}

// languageCode maps the catalog's language names to the codes EPUB expects.
// Unknown names pass through.
func languageCode(name string) string {
	switch strings.ToLower(name) {
	case "korean", "한국어":
		return "ko"
	case "english", "영어":
		return "en"
	case "japanese", "일본어":
		return "ja"
	case "chinese", "중국어":
		return "zh"
	}
	return name
}
