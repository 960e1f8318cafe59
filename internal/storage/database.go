package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists cover URLs and ISBN mappings between runs
type Database struct {
	db *sql.DB
}

// NewDatabase creates and initializes the SQLite database. An empty path
// opens a private in-memory database.
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection so every caller sees the same in-memory database
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cover_urls (
		catalog_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS isbn_catalog_ids (
		isbn TEXT PRIMARY KEY,
		catalog_id TEXT NOT NULL,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_isbn_catalog_id ON isbn_catalog_ids(catalog_id);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// CacheCoverURL stores the cover URL for a catalog item and returns the id
// it was stored under. Empty values are not stored.
func (d *Database) CacheCoverURL(catalogID, url string) (string, error) {
	if catalogID == "" || url == "" {
		return "", nil
	}
	_, err := d.db.Exec(`
		INSERT INTO cover_urls (catalog_id, url, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(catalog_id) DO UPDATE SET url = excluded.url, cached_at = excluded.cached_at`,
		catalogID, url, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("cache cover url: %w", err)
	}
	return catalogID, nil
}

// CoverURL returns the cached cover URL, or "" if none is cached
func (d *Database) CoverURL(catalogID string) (string, error) {
	var url string
	err := d.db.QueryRow(`SELECT url FROM cover_urls WHERE catalog_id = ?`, catalogID).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return url, err
}

// CacheISBN remembers which catalog item an ISBN belongs to
func (d *Database) CacheISBN(isbn, catalogID string) error {
	if isbn == "" || catalogID == "" {
		return nil
	}
	_, err := d.db.Exec(`
		INSERT INTO isbn_catalog_ids (isbn, catalog_id, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(isbn) DO UPDATE SET catalog_id = excluded.catalog_id, cached_at = excluded.cached_at`,
		isbn, catalogID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("cache isbn: %w", err)
	}
	return nil
}

// CatalogIDForISBN returns the catalog id cached for isbn, or ""
func (d *Database) CatalogIDForISBN(isbn string) (string, error) {
	var id string
	err := d.db.QueryRow(`SELECT catalog_id FROM isbn_catalog_ids WHERE isbn = ?`, isbn).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// CacheStats counts cached entries
type CacheStats struct {
	Covers int `json:"covers"`
	ISBNs  int `json:"isbns"`
}

// Stats returns how many cover URLs and ISBN mappings are cached
func (d *Database) Stats() (CacheStats, error) {
	var stats CacheStats
	err := d.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM cover_urls),
			(SELECT COUNT(*) FROM isbn_catalog_ids)`,
	).Scan(&stats.Covers, &stats.ISBNs)
	return stats, err
}
