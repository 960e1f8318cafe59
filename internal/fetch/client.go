package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultReferer is sent on every request unless the caller overrides it
const DefaultReferer = "https://www.aladin.co.kr/"

// maxBodySize caps how much of a response is read
const maxBodySize = 8 << 20

// Config is the immutable request template shared by all workers
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Header    http.Header
}

// DefaultConfig returns the header set the catalog expects from browser traffic
func DefaultConfig() Config {
	h := http.Header{}
	h.Set("Referer", DefaultReferer)
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return Config{
		Timeout: 30 * time.Second,
		Header:  h,
	}
}

// Client performs GET requests against the catalog site
type Client struct {
	http      *http.Client
	config    Config
	userAgent string
}

// NewClient creates a client from the given template. An empty UserAgent
// picks a random desktop browser string.
func NewClient(cfg Config) *Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = RandomUserAgent()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	cfg.Header = cfg.Header.Clone()
	return &Client{
		http:      newHTTPClient(),
		config:    cfg,
		userAgent: ua,
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// Clone returns a client with the same template but its own connection state
func (c *Client) Clone() *Client {
	return &Client{
		http:      newHTTPClient(),
		config:    c.config,
		userAgent: c.userAgent,
	}
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// UserAgent returns the user agent this client sends
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Fetch performs a GET and returns the body decoded to UTF-8. Values in
// header replace the template's values for the same key.
func (c *Client) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	for k, v := range c.config.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	for k, v := range header {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: ErrBadStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return decode(body, resp.Header.Get("Content-Type")), nil
}

// decode converts textual responses to UTF-8. Binary bodies are returned as is.
func decode(body []byte, contentType string) []byte {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !isText(contentType) {
		return body
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return out
}

func isText(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return strings.HasPrefix(mt, "text/") || strings.Contains(mt, "html") || strings.Contains(mt, "xml")
}
