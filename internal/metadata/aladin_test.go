package metadata

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		req      IdentifyRequest
		expected url.Values
	}{
		{
			name: "isbn wins over title and authors",
			req: IdentifyRequest{
				Title:       "파운데이션",
				Authors:     []string{"아이작 아시모프"},
				Identifiers: map[string]string{IdentifierISBN: "978-89-6017-742-0"},
			},
			expected: url.Values{"KeyISBN": {"9788960177420"}, "ViewRowCount": {"50"}},
		},
		{
			name: "invalid isbn falls back to title",
			req: IdentifyRequest{
				Title:       "Foundation",
				Identifiers: map[string]string{IdentifierISBN: "9788960177421"},
			},
			expected: url.Values{"SearchWord": {"Foundation"}, "ViewRowCount": {"50"}},
		},
		{
			name: "title then first author",
			req: IdentifyRequest{
				Title:   "The Foundation Trilogy",
				Authors: []string{"Asimov, Isaac", "Someone Else"},
			},
			expected: url.Values{"SearchWord": {"Foundation Trilogy Isaac Asimov"}, "ViewRowCount": {"50"}},
		},
		{
			name:     "authors only",
			req:      IdentifyRequest{Authors: []string{"김미선"}},
			expected: url.Values{"SearchWord": {"김미선"}, "ViewRowCount": {"50"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := BuildQuery(testBaseURL, tt.req)
			require.NoError(t, err)

			u, err := url.Parse(query)
			require.NoError(t, err)
			assert.Equal(t, "catalog.test", u.Host)
			assert.Equal(t, "/search/wsearchresult.aspx", u.Path)
			assert.Equal(t, tt.expected, u.Query())
		})
	}
}

func TestBuildQueryInsufficientMetadata(t *testing.T) {
	tests := []struct {
		name string
		req  IdentifyRequest
	}{
		{"empty request", IdentifyRequest{}},
		{"only unusable tokens", IdentifyRequest{Title: "The", Authors: []string{"Unknown"}}},
		{"invalid isbn alone", IdentifyRequest{Identifiers: map[string]string{IdentifierISBN: "123"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildQuery(testBaseURL, tt.req)
			assert.ErrorIs(t, err, ErrInsufficientMetadata)
		})
	}
}

func TestParseSearchResults(t *testing.T) {
	candidates, err := ParseSearchResults([]byte(searchPage))
	require.NoError(t, err)

	assert.Equal(t, []Candidate{{"111"}, {"222"}, {"333"}}, candidates)
}

func TestParseSearchResultsEmpty(t *testing.T) {
	candidates, err := ParseSearchResults([]byte(emptySearchPage))
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = ParseSearchResults(nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCandidatesFromIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		ids      map[string]string
		expected []Candidate
	}{
		{"catalog id", map[string]string{IdentifierCatalog: "111"}, []Candidate{{"111"}}},
		{"legacy key", map[string]string{IdentifierCatalogLegacy: "222"}, []Candidate{{"222"}}},
		{"catalog id wins", map[string]string{IdentifierCatalog: "111", IdentifierCatalogLegacy: "222"}, []Candidate{{"111"}}},
		{"isbn only", map[string]string{IdentifierISBN: "9788960177420"}, nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CandidatesFromIdentifiers(tt.ids))
		})
	}
}

func TestItemURL(t *testing.T) {
	assert.Equal(t, "http://catalog.test/shop/wproduct.aspx?ItemId=111", ItemURL(testBaseURL+"/", "111"))
}
