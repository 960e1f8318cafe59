package metadata

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section labels for merged comments
const (
	IntroductionLabel    = "Introduction"
	PublisherDescLabel   = "Publisher's Description"
	introductionFragment = "Introduce"
	publisherFragment    = "PublisherDesc"
)

const (
	descriptionMarker = "책소개"
	collapseSuffix    = " 접기"
)

// fetchComments runs the two-source comment sub-fetch keyed by key and
// returns the merged text. Either source failing leaves its section empty.
func (e *Extractor) fetchComments(ctx context.Context, referer, key string) string {
	intro := e.fetchCommentFragment(ctx, referer, key, introductionFragment)
	publisher := e.fetchCommentFragment(ctx, referer, key, publisherFragment)
	return MergeComments(intro, publisher)
}

func (e *Extractor) fetchCommentFragment(ctx context.Context, referer, key, name string) string {
	header := http.Header{}
	header.Set("Referer", referer)

	fragmentURL := commentsURL(e.baseURL, key, name)
	raw, err := e.get(ctx, fragmentURL, header)
	if err != nil {
		e.logger.Debug("comment fragment unavailable", "url", fragmentURL, "error", err)
		return ""
	}
	return parseCommentFragment(raw)
}

// parseCommentFragment returns the description text of a fragment page,
// preferring the untruncated variant when the page carries one
func parseCommentFragment(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var text string
	doc.Find("div[class*='Ere_prod_mconts_LS']").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.Contains(ownText(label), descriptionMarker) {
			return true
		}
		parent := label.Parent()
		if full := parent.Find("div#div_PublisherDesc_All").First(); full.Length() > 0 {
			text = full.Text()
		} else {
			text = parent.ChildrenFiltered("div[class*='Ere_prod_mconts_R']").First().Text()
		}
		text = strings.TrimSpace(text)
		return text == ""
	})
	return text
}

// MergeComments joins the introduction and publisher description into one
// labelled block. Empty sections are omitted; both empty yields "".
func MergeComments(intro, publisher string) string {
	var parts []string
	if intro = strings.TrimSpace(intro); intro != "" {
		parts = append(parts, IntroductionLabel, intro)
	}
	publisher = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(publisher), collapseSuffix))
	if publisher != "" {
		parts = append(parts, PublisherDescLabel, publisher)
	}
	return strings.ReplaceAll(strings.Join(parts, "\n\n"), "\r", "")
}
