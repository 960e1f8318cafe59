package metadata

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Common errors
var (
	ErrInsufficientMetadata = errors.New("insufficient metadata to construct query")
	ErrNoCover              = errors.New("no cover found")
)

// Identifier kinds understood by the catalog
const (
	IdentifierCatalog       = "aladin"
	IdentifierCatalogLegacy = "aladin.co.kr"
	IdentifierISBN          = "isbn"
)

// SourceName is reported on every record
const SourceName = "aladin"

// DefaultLanguage is assumed when the detail page carries no language field
const DefaultLanguage = "Korean"

// UndefinedDate marks a record whose publication date is unknown
var UndefinedDate = time.Date(101, time.January, 1, 0, 0, 0, 0, time.UTC)

// IdentifyRequest describes what the caller already knows about a book
type IdentifyRequest struct {
	Title       string            `json:"title,omitempty"`
	Authors     []string          `json:"authors,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

// retryableWithoutIdentifiers reports whether a zero-candidate identifier
// search may be repeated using only title and authors
func (r IdentifyRequest) retryableWithoutIdentifiers() bool {
	return len(r.Identifiers) > 0 && r.Title != "" && len(r.Authors) > 0
}

// Candidate is one catalog item pending detail extraction
type Candidate struct {
	CatalogID string `json:"catalog_id"`
}

// Series places a book within a numbered series
type Series struct {
	Name  string  `json:"name" yaml:"name"`
	Index float64 `json:"index" yaml:"index"`
}

// MetadataRecord is the resolved metadata for one catalog item
type MetadataRecord struct {
	Title       string            `json:"title" yaml:"title"`
	Authors     []string          `json:"authors" yaml:"authors"`
	Publisher   string            `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishDate time.Time         `json:"publish_date" yaml:"publish_date"`
	Identifiers map[string]string `json:"identifiers" yaml:"identifiers"`
	CoverURL    string            `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	HasCover    bool              `json:"has_cover" yaml:"has_cover"`
	Comments    string            `json:"comments,omitempty" yaml:"comments,omitempty"`
	Series      *Series           `json:"series,omitempty" yaml:"series,omitempty"`
	Rating      *float64          `json:"rating,omitempty" yaml:"rating,omitempty"` // 0.0 - 5.0
	Tags        []string          `json:"tags" yaml:"tags"`
	Languages   []string          `json:"languages" yaml:"languages"`
	Relevance   int               `json:"relevance" yaml:"relevance"`
	Source      string            `json:"source" yaml:"source"`
}

// NewRecord returns a record carrying the defaults every extraction starts from:
// title "Unknown", no authors or tags, an undefined publication date, the
// default language, and the catalog id as its only identifier.
func NewRecord(catalogID string) *MetadataRecord {
	return &MetadataRecord{
		Title:       "Unknown",
		Authors:     []string{},
		PublishDate: UndefinedDate,
		Identifiers: map[string]string{IdentifierCatalog: catalogID},
		Tags:        []string{},
		Languages:   []string{DefaultLanguage},
		Source:      SourceName,
	}
}

// HasPublishDate reports whether the publication date is known
func (m *MetadataRecord) HasPublishDate() bool {
	return !m.PublishDate.Equal(UndefinedDate)
}

// CatalogID returns the record's catalog identifier
func (m *MetadataRecord) CatalogID() string {
	return m.Identifiers[IdentifierCatalog]
}

// Fetcher performs GET requests for the pipeline
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// CoverCache remembers cover URLs per catalog id and ISBN to catalog id
// mappings. Lookups of unknown keys return an empty string and no error.
type CoverCache interface {
	// CacheCoverURL stores url for catalogID and returns the id it was cached under
	CacheCoverURL(catalogID, url string) (string, error)

	CoverURL(catalogID string) (string, error)

	CacheISBN(isbn, catalogID string) error

	CatalogIDForISBN(isbn string) (string, error)
}

// PageOverride supplies a previously saved copy of a detail page that the
// catalog refuses to serve without a login (age-restricted titles)
type PageOverride interface {
	SavedPage(catalogID string) ([]byte, error)
}
