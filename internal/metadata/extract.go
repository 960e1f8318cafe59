package metadata

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page markers as they appear on the catalog site
const (
	ageRestrictedMarker = "19세"
	oldEditionMarker    = "구판"
	languageLabel       = "언어"
)

var (
	titleStripPattern  = regexp.MustCompile("[:,;!@$%^&*(){}.`~\"\\[\\]/《》「」“”]")
	seriesIndexPattern = regexp.MustCompile(`\s+(\d+)\s*$`)
)

var publishDateLayouts = []string{
	time.DateOnly,
	"2006-1-2",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	time.RFC3339,
}

// Extractor turns one candidate's detail page into a MetadataRecord
type Extractor struct {
	baseURL  string
	fetcher  Fetcher
	cache    CoverCache
	override PageOverride
	timeout  time.Duration
	logger   *slog.Logger
}

// Extract fetches and parses the detail page for c. Missing fields are left
// at their defaults; only a failure to fetch or read the page is an error.
func (e *Extractor) Extract(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
	itemURL := ItemURL(e.baseURL, c.CatalogID)
	e.logger.Debug("fetching detail page", "catalog_id", c.CatalogID, "url", itemURL)

	doc, err := e.loadDetailPage(ctx, itemURL, c.CatalogID)
	if err != nil {
		return nil, err
	}

	rec := NewRecord(c.CatalogID)
	rec.Relevance = relevance
	rec.Authors = extractAuthors(doc)
	rec.Publisher = extractPublisher(doc)
	if title := extractTitle(doc); title != "" {
		rec.Title = title
	}
	rec.PublishDate = extractPublishDate(doc)
	if isOldEdition(doc) {
		rec.Title += fmt.Sprintf(" (edition %04d)", rec.PublishDate.Year())
	}

	if cover, ok := metaContent(doc, "meta[property='og:image']"); ok {
		rec.CoverURL = cover
		rec.HasCover = e.cacheCover(c.CatalogID, cover)
	}

	if isbn, ok := metaContent(doc, "meta[property='books:isbn']"); ok {
		rec.Comments = e.fetchComments(ctx, itemURL, isbn)
		if rec.Comments == "" {
			if key := coverFileKey(rec.CoverURL); key != "" {
				rec.Comments = e.fetchComments(ctx, itemURL, key)
			}
		}
		rec.Identifiers[IdentifierISBN] = isbn
		if err := e.cache.CacheISBN(normalizeISBN(isbn), c.CatalogID); err != nil {
			e.logger.Warn("failed to cache isbn", "catalog_id", c.CatalogID, "isbn", isbn, "error", err)
		}
	}

	rec.Series = extractSeries(doc)
	rec.Rating = extractRating(doc)
	rec.Tags = extractTags(doc)
	if lang := extractLanguage(doc); lang != "" {
		rec.Languages = []string{lang}
	}
	return rec, nil
}

func (e *Extractor) loadDetailPage(ctx context.Context, itemURL, catalogID string) (*goquery.Document, error) {
	raw, err := e.get(ctx, itemURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse detail page %s: %w", catalogID, err)
	}
	if !isAgeRestricted(doc, raw) || e.override == nil {
		return doc, nil
	}

	e.logger.Info("detail page is age restricted, trying saved copy", "catalog_id", catalogID)
	saved, err := e.override.SavedPage(catalogID)
	if err != nil {
		e.logger.Warn("no saved copy of restricted page", "catalog_id", catalogID, "error", err)
		return doc, nil
	}
	savedDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(saved))
	if err != nil {
		e.logger.Warn("unreadable saved copy of restricted page", "catalog_id", catalogID, "error", err)
		return doc, nil
	}
	return savedDoc, nil
}

// get fetches url bounded by the per-fetch timeout
func (e *Extractor) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.fetcher.Fetch(ctx, url, header)
}

func (e *Extractor) cacheCover(catalogID, coverURL string) bool {
	cached, err := e.cache.CacheCoverURL(catalogID, coverURL)
	if err != nil {
		e.logger.Warn("failed to cache cover url", "catalog_id", catalogID, "error", err)
		return false
	}
	return cached != ""
}

func isAgeRestricted(doc *goquery.Document, raw []byte) bool {
	return doc.Find("title").Length() == 0 && bytes.Contains(raw, []byte(ageRestrictedMarker))
}

// metaContent returns the trimmed content attribute of the first match
func metaContent(doc *goquery.Document, selector string) (string, bool) {
	content, ok := doc.Find(selector).First().Attr("content")
	content = strings.TrimSpace(content)
	return content, ok && content != ""
}

// ownText concatenates the text nodes directly under s, skipping child elements
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

func extractAuthors(doc *goquery.Document) []string {
	authors := []string{}
	doc.Find("a[class*='Ere_sub2_title'][href*='AuthorSearch']").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})
	if len(authors) > 0 {
		return authors
	}

	meta, ok := metaContent(doc, "meta[name='author']")
	if !ok {
		return authors
	}
	for _, name := range strings.Split(meta, ",") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func extractPublisher(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("a[class*='Ere_sub2_title'][href*='PublisherSearch']").First().Text())
}

func extractTitle(doc *goquery.Document) string {
	title, ok := metaContent(doc, "meta[name='title']")
	if !ok {
		return ""
	}
	title = cleanTitle(title)
	if sub := strings.TrimSpace(doc.Find("span[class*='Ere_sub1_title']").First().Text()); sub != "" {
		title += " " + sub
	}
	return title
}

// cleanTitle strips bracket and punctuation characters and collapses whitespace
func cleanTitle(title string) string {
	return strings.Join(strings.Fields(titleStripPattern.ReplaceAllString(title, "")), " ")
}

func extractPublishDate(doc *goquery.Document) time.Time {
	raw, ok := metaContent(doc, "meta[itemprop='datePublished']")
	if !ok {
		return UndefinedDate
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return UndefinedDate
}

func isOldEdition(doc *goquery.Document) bool {
	found := false
	doc.Find("div[class*='Ere_btn_old'] a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = strings.Contains(a.Text(), oldEditionMarker)
		return !found
	})
	return found
}

// coverFileKey returns the part of the cover image file name before the
// first underscore
func coverFileKey(coverURL string) string {
	if coverURL == "" {
		return ""
	}
	name := coverURL
	if u, err := url.Parse(coverURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	} else if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	key, _, _ := strings.Cut(name, "_")
	if key == "." || key == "/" {
		return ""
	}
	return strings.TrimSpace(key)
}

func extractSeries(doc *goquery.Document) *Series {
	text := strings.TrimSpace(doc.Find("a[class*='Ere_sub1_title']").First().Text())
	if text == "" {
		return nil
	}
	return parseSeries(text)
}

// parseSeries splits a trailing volume number off a series name
func parseSeries(text string) *Series {
	loc := seriesIndexPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return &Series{Name: text}
	}
	index, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	if err != nil {
		return &Series{Name: text}
	}
	return &Series{Name: strings.TrimSpace(text[:loc[0]]), Index: index}
}

func extractRating(doc *goquery.Document) *float64 {
	node := doc.Find("div[class='info'] a[class*='Ere_str']").First()
	if node.Length() == 0 {
		return nil
	}
	return parseRating(node.Text())
}

// parseRating converts the site's 0-10 score to 0-5
func parseRating(text string) *float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	rating := min(max(score/2, 0), 5)
	return &rating
}

func extractTags(doc *goquery.Document) []string {
	tags := []string{}
	seen := make(map[string]bool)
	doc.Find("ul#ulCategory a[href*='CID']").Each(func(_ int, a *goquery.Selection) {
		tag := strings.TrimSpace(a.Text())
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	})
	return tags
}

func extractLanguage(doc *goquery.Document) string {
	var lang string
	doc.Find("div[class='conts_info_list1'] li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if !strings.Contains(ownText(li), languageLabel) {
			return true
		}
		lang = strings.TrimSpace(li.ChildrenFiltered("b").First().Text())
		return lang == ""
	})
	return lang
}
