package storage

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidName is returned for ids that cannot name a file
var ErrInvalidName = errors.New("invalid file name")

// PageStore reads detail pages saved by hand for items the catalog will not
// serve anonymously. Pages are stored as <catalog id>.html.
type PageStore struct {
	dir string
}

// NewPageStore creates a page store over dir
func NewPageStore(dir string) *PageStore {
	return &PageStore{dir: dir}
}

// Dir returns the directory pages are read from
func (ps *PageStore) Dir() string {
	return ps.dir
}

// SavedPage returns the saved page for catalogID
func (ps *PageStore) SavedPage(catalogID string) ([]byte, error) {
	name := sanitizeFileName(catalogID)
	if name == "" || name != catalogID {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, catalogID)
	}
	return os.ReadFile(filepath.Join(ps.dir, name+".html"))
}

// CoverStore writes downloaded cover images to a directory
type CoverStore struct {
	dir string
}

// NewCoverStore creates a cover store, creating dir if needed
func NewCoverStore(dir string) (*CoverStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &CoverStore{dir: dir}, nil
}

// SaveCover writes data as <name><ext>, the extension following the image
// type. An existing file with identical content is reused; a different file
// with the same name gets a numeric suffix. An empty name falls back to the
// content hash.
func (cs *CoverStore) SaveCover(name string, data []byte) (string, error) {
	name = sanitizeFileName(name)
	if name == "" {
		name = HashBytes(data)[:16]
	}
	filePath := filepath.Join(cs.dir, name+imageExt(data))

	if existing, err := HashFile(filePath); err == nil && existing == HashBytes(data) {
		return filePath, nil
	}
	filePath = resolveConflict(filePath)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", err
	}
	return filePath, nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

var (
	invalidNameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)
	nameSpaces       = regexp.MustCompile(`[_\s]+`)
)

// sanitizeFileName removes or replaces characters that are invalid in filenames
func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}

	// Windows: \ / : * ? " < > |, plus control characters
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = nameSpaces.ReplaceAllString(name, " ")

	// Trim leading/trailing spaces and dots (problematic on Windows)
	name = strings.Trim(name, " .")

	// Limit length to avoid filesystem issues (max 255 bytes, leave room for extension)
	if len(name) > 200 {
		name = name[:200]
	}

	return name
}

// resolveConflict adds a numeric suffix if the target path already exists
func resolveConflict(targetPath string) string {
	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return targetPath
	}

	ext := filepath.Ext(targetPath)
	base := strings.TrimSuffix(targetPath, ext)

	for i := 2; i < 1000; i++ {
		newPath := base + fmt.Sprintf(" (%d)", i) + ext
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}

	return targetPath
}
