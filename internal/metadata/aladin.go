package metadata

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBaseURL is the catalog site root
const DefaultBaseURL = "https://www.aladin.co.kr"

// MaxResults is the largest page size the search list supports
const MaxResults = 50

const (
	searchPath   = "/search/wsearchresult.aspx"
	itemPath     = "/shop/wproduct.aspx"
	commentsPath = "/shop/product/getContents.aspx"
)

var itemIDPattern = regexp.MustCompile(`ItemId=(\d+)$`)

// BuildQuery returns the search URL for req. A valid ISBN always wins over
// title and authors. ErrInsufficientMetadata is returned when neither
// yields anything to search for.
func BuildQuery(baseURL string, req IdentifyRequest) (string, error) {
	params := url.Values{}
	params.Set("ViewRowCount", fmt.Sprint(MaxResults))

	if isbn, ok := CheckISBN(req.Identifiers[IdentifierISBN]); ok {
		params.Set("KeyISBN", isbn)
		return searchURL(baseURL, params), nil
	}

	tokens := TitleTokens(req.Title)
	tokens = append(tokens, AuthorTokens(req.Authors, true)...)
	if len(tokens) == 0 {
		return "", ErrInsufficientMetadata
	}
	params.Set("SearchWord", strings.Join(tokens, " "))
	return searchURL(baseURL, params), nil
}

func searchURL(baseURL string, params url.Values) string {
	return strings.TrimRight(baseURL, "/") + searchPath + "?" + params.Encode()
}

// ItemURL returns the detail page URL for a catalog id
func ItemURL(baseURL, catalogID string) string {
	return strings.TrimRight(baseURL, "/") + itemPath + "?ItemId=" + url.QueryEscape(catalogID)
}

func commentsURL(baseURL, key, name string) string {
	params := url.Values{}
	params.Set("ISBN", key)
	params.Set("name", name)
	return strings.TrimRight(baseURL, "/") + commentsPath + "?" + params.Encode()
}

// ParseSearchResults extracts catalog ids from a search results page in
// first-seen order. A page without result links yields an empty list.
func ParseSearchResults(raw []byte) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	candidates := []Candidate{}
	seen := make(map[string]bool)
	doc.Find("div.ss_book_list li a[href*='ItemId']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := itemIDPattern.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		candidates = append(candidates, Candidate{CatalogID: m[1]})
	})
	return candidates, nil
}

// catalogID returns the catalog id carried by identifiers under either key
func catalogID(identifiers map[string]string) string {
	if id := strings.TrimSpace(identifiers[IdentifierCatalog]); id != "" {
		return id
	}
	return strings.TrimSpace(identifiers[IdentifierCatalogLegacy])
}

// CandidatesFromIdentifiers returns the single known candidate when the
// identifiers already name a catalog item, skipping the search page
func CandidatesFromIdentifiers(identifiers map[string]string) []Candidate {
	if id := catalogID(identifiers); id != "" {
		return []Candidate{{CatalogID: id}}
	}
	return nil
}
