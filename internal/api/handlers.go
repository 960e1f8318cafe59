package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justyntemme/aladinkr/internal/fetch"
	"github.com/justyntemme/aladinkr/internal/metadata"
	"github.com/justyntemme/aladinkr/internal/storage"
)

// Version is reported by the API info endpoint
var Version = "dev"

// StatusClientClosedRequest is returned when the caller goes away mid-request
const StatusClientClosedRequest = 499

// Identifier is the metadata pipeline the handlers drive
type Identifier interface {
	IdentifyAll(ctx context.Context, req metadata.IdentifyRequest) ([]*metadata.MetadataRecord, error)
	DownloadCover(ctx context.Context, req metadata.IdentifyRequest) ([]byte, error)
	BookURL(identifiers map[string]string) (string, bool)
}

// CacheStats reports cover cache contents
type CacheStats interface {
	Stats() (storage.CacheStats, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	service Identifier
	stats   CacheStats
	timeout time.Duration
	logger  *slog.Logger
}

// NewHandler creates a new handler instance. stats may be nil when no
// persistent cache is configured; timeout bounds each identify or cover
// request as a whole.
func NewHandler(service Identifier, stats CacheStats, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Handler{
		service: service,
		stats:   stats,
		timeout: timeout,
		logger:  logger,
	}
}

// HealthCheck returns server health status
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{"status": "ok", "time": time.Now()}
	if h.stats != nil {
		stats, err := h.stats.Stats()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "Cover cache unavailable"})
			return
		}
		resp["cache"] = stats
	}
	c.JSON(http.StatusOK, resp)
}

// Identify resolves metadata for the query parameters
func (h *Handler) Identify(c *gin.Context) {
	req := identifyRequest(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	records, err := h.service.IdentifyAll(ctx, req)
	if err != nil {
		h.writeError(c, err, "Failed to identify book")
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching metadata found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
}

// Cover returns the cover image for the query parameters
func (h *Handler) Cover(c *gin.Context) {
	req := identifyRequest(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	data, err := h.service.DownloadCover(ctx, req)
	if err != nil {
		h.writeError(c, err, "Failed to download cover")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// BookURL returns the catalog page for a catalog id
func (h *Handler) BookURL(c *gin.Context) {
	id := c.Param("id")
	url, ok := h.service.BookURL(map[string]string{metadata.IdentifierCatalog: id})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown catalog id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "url": url})
}

// APIInfo returns API documentation and source capabilities
func (h *Handler) APIInfo(c *gin.Context) {
	endpoints := []gin.H{
		{"method": "GET", "path": "/health", "description": "Health check"},
		{"method": "GET", "path": "/api", "description": "API documentation"},
		{"method": "GET", "path": "/api/identify", "description": "Identify a book", "query": "isbn, title, author (repeatable), aladin"},
		{"method": "GET", "path": "/api/cover", "description": "Download a cover image", "query": "isbn, title, author (repeatable), aladin"},
		{"method": "GET", "path": "/api/books/:id/url", "description": "Catalog page for a catalog id"},
		{"method": "POST", "path": "/api/auth/refresh", "description": "Exchange a token for a fresh one (when auth is enabled)"},
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        "aladinkr",
		"version":     Version,
		"description": "Downloads metadata and covers from the Aladin catalog",
		"source":      metadata.SourceName,
		"capabilities": gin.H{
			"identify":            true,
			"cover":               true,
			"identifier_types":    []string{metadata.IdentifierCatalog, metadata.IdentifierCatalogLegacy, metadata.IdentifierISBN},
			"touched_fields":      touchedFields,
			"max_results":         metadata.MaxResults,
			"cached_cover_lookup": true,
		},
		"endpoints": endpoints,
	})
}

var touchedFields = []string{
	"title", "authors", "identifier:isbn", "identifier:aladin", "rating", "comments",
	"publisher", "pubdate", "series", "tags", "languages",
}

// identifyRequest builds a request from query parameters
func identifyRequest(c *gin.Context) metadata.IdentifyRequest {
	req := metadata.IdentifyRequest{
		Title:       strings.TrimSpace(c.Query("title")),
		Identifiers: map[string]string{},
	}
	for _, a := range c.QueryArray("author") {
		if a = strings.TrimSpace(a); a != "" {
			req.Authors = append(req.Authors, a)
		}
	}
	for _, key := range []string{metadata.IdentifierISBN, metadata.IdentifierCatalog, metadata.IdentifierCatalogLegacy} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			req.Identifiers[key] = v
		}
	}
	return req
}

// writeError maps pipeline errors to HTTP statuses
func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var fetchErr *fetch.FetchError
	switch {
	case errors.Is(err, metadata.ErrInsufficientMetadata):
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least isbn, title, author or aladin is required"})
	case errors.Is(err, metadata.ErrNoCover):
		c.JSON(http.StatusNotFound, gin.H{"error": "No cover found"})
	case errors.Is(err, context.Canceled):
		c.JSON(StatusClientClosedRequest, gin.H{"error": "Request cancelled"})
	case errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &fetchErr):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request timed out"})
	case errors.As(err, &fetchErr):
		h.logger.Warn("upstream fetch failed", "url", fetchErr.URL, "status", fetchErr.StatusCode, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Catalog site unavailable"})
	default:
		h.logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
