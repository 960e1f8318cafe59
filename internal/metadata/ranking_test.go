package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "THE GREAT GATSBY", "great gatsby"},
		{"removes article a", "A Tale of Two Cities", "tale of two cities"},
		{"removes article the", "The Hobbit", "hobbit"},
		{"removes punctuation", "Hello, World!", "hello world"},
		{"collapses whitespace", "Hello   World", "hello world"},
		{"keeps hangul", "파운데이션: 제국의 몰락", "파운데이션 제국의 몰락"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalize(tt.input))
		})
	}
}

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"identical", "hello world", "hello world", 1.0},
		{"empty a", "", "hello", 0.0},
		{"empty b", "hello", "", 0.0},
		{"partial match", "hello world", "hello there", 0.33}, // 1 match out of 3 unique tokens
		{"no match", "hello world", "foo bar", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stringSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.1, "similarity for %q and %q", tt.a, tt.b)
		})
	}
}

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		name     string
		rec      *MetadataRecord
		title    string
		author   string
		minScore float64
		maxScore float64
	}{
		{
			name:     "exact match",
			rec:      &MetadataRecord{Title: "채식주의자", Authors: []string{"한강"}},
			title:    "채식주의자",
			author:   "한강",
			minScore: 0.99,
			maxScore: 1.0,
		},
		{
			name:     "title match, no author given",
			rec:      &MetadataRecord{Title: "채식주의자", Authors: []string{"한강"}},
			title:    "채식주의자",
			minScore: 0.99,
			maxScore: 1.0,
		},
		{
			name:     "title match, wrong author",
			rec:      &MetadataRecord{Title: "채식주의자", Authors: []string{"한강"}},
			title:    "채식주의자",
			author:   "김영하",
			minScore: 0.59,
			maxScore: 0.61,
		},
		{
			name:     "no match",
			rec:      &MetadataRecord{Title: "소년이 온다", Authors: []string{"한강"}},
			title:    "살인자의 기억법",
			author:   "김영하",
			minScore: 0.0,
			maxScore: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := calculateConfidence(tt.rec, tt.title, tt.author)
			assert.GreaterOrEqual(t, score, tt.minScore, "score too low")
			assert.LessOrEqual(t, score, tt.maxScore, "score too high")
		})
	}
}

func record(id string, relevance int, title string, authors ...string) *MetadataRecord {
	rec := NewRecord(id)
	rec.Relevance = relevance
	rec.Title = title
	rec.Authors = authors
	return rec
}

func ids(records []*MetadataRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.CatalogID()
	}
	return out
}

func TestRankByRelevance(t *testing.T) {
	records := []*MetadataRecord{
		record("c", 2, "C"),
		record("a", 0, "A"),
		record("b", 1, "B"),
	}

	ranked := Ranker{}.Rank(records)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ranked))
	assert.Equal(t, []string{"c", "a", "b"}, ids(records), "input must not be reordered")
}

func TestRankTieBreaker(t *testing.T) {
	records := []*MetadataRecord{
		record("x", 0, "X"),
		record("y", 0, "Y"),
		record("z", 1, "Z"),
	}
	reverse := func(a, b *MetadataRecord) int {
		return -1 * compareStrings(a.CatalogID(), b.CatalogID())
	}

	ranked := Ranker{TieBreak: reverse}.Rank(records)
	assert.Equal(t, []string{"y", "x", "z"}, ids(ranked))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func TestMatchQuality(t *testing.T) {
	req := IdentifyRequest{
		Title:   "채식주의자",
		Authors: []string{"한강"},
	}
	records := []*MetadataRecord{
		record("partial", 0, "채식주의자 리커버", "한강"),
		record("exact", 0, "채식주의자", "한강"),
		record("other", 0, "소년이 온다", "한강"),
	}

	ranked := Ranker{TieBreak: MatchQuality(req)}.Rank(records)
	assert.Equal(t, []string{"exact", "partial", "other"}, ids(ranked))
}

func TestMatchQualityPrefersIdentifierMatch(t *testing.T) {
	req := IdentifyRequest{
		Title:       "채식주의자",
		Identifiers: map[string]string{IdentifierISBN: "978-89-364-3414-5"},
	}
	exact := record("exact", 0, "채식주의자")
	byISBN := record("isbn", 0, "채식주의자 (리커버)")
	byISBN.Identifiers[IdentifierISBN] = "9788936434145"

	ranked := Ranker{TieBreak: MatchQuality(req)}.Rank([]*MetadataRecord{exact, byISBN})
	assert.Equal(t, []string{"isbn", "exact"}, ids(ranked))
}

func TestCollect(t *testing.T) {
	ch := make(chan *MetadataRecord, 3)
	ch <- record("a", 0, "A")
	ch <- record("b", 1, "B")

	assert.Equal(t, []string{"a", "b"}, ids(Collect(ch)))
	assert.Empty(t, Collect(ch))

	close(ch)
	assert.Empty(t, Collect(ch))
}
