package metadata

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
)

// TieBreaker orders two records of equal relevance. It returns a negative
// number when a should come first.
type TieBreaker func(a, b *MetadataRecord) int

// Ranker orders identify results
type Ranker struct {
	TieBreak TieBreaker
}

// Rank returns records sorted by relevance, first search result first.
// Equal relevance falls back to TieBreak; the input is not modified.
func (r Ranker) Rank(records []*MetadataRecord) []*MetadataRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *MetadataRecord) int {
		if c := cmp.Compare(a.Relevance, b.Relevance); c != 0 {
			return c
		}
		if r.TieBreak != nil {
			return r.TieBreak(a, b)
		}
		return 0
	})
	return sorted
}

// Collect drains whatever records are already buffered in ch without blocking
func Collect(ch <-chan *MetadataRecord) []*MetadataRecord {
	var records []*MetadataRecord
	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return records
			}
			records = append(records, rec)
		default:
			return records
		}
	}
}

// MatchQuality returns a TieBreaker preferring records closer to req:
// identifier matches first, then title/author similarity
func MatchQuality(req IdentifyRequest) TieBreaker {
	author := ""
	if len(req.Authors) > 0 {
		author = req.Authors[0]
	}
	return func(a, b *MetadataRecord) int {
		return cmp.Compare(matchScore(b, req, author), matchScore(a, req, author))
	}
}

func matchScore(rec *MetadataRecord, req IdentifyRequest, author string) float64 {
	score := 0.0
	if identifiersMatch(rec, req.Identifiers) {
		score += 1.0
	}
	if req.Title != "" {
		score += calculateConfidence(rec, req.Title, author)
	}
	return score
}

func identifiersMatch(rec *MetadataRecord, ids map[string]string) bool {
	if id := catalogID(ids); id != "" && id == rec.CatalogID() {
		return true
	}
	want := normalizeISBN(ids[IdentifierISBN])
	return want != "" && want == normalizeISBN(rec.Identifiers[IdentifierISBN])
}

// calculateConfidence computes match confidence based on title/author similarity
func calculateConfidence(rec *MetadataRecord, title, author string) float64 {
	titleScore := stringSimilarity(normalize(rec.Title), normalize(title))

	authorScore := 0.0
	if author != "" && len(rec.Authors) > 0 {
		// Find best matching author
		normalizedAuthor := normalize(author)
		for _, a := range rec.Authors {
			score := stringSimilarity(normalize(a), normalizedAuthor)
			if score > authorScore {
				authorScore = score
			}
		}
	} else if author == "" {
		// No author to compare, don't penalize
		authorScore = 1.0
	}

	// Weight: 60% title, 40% author
	return titleScore*0.6 + authorScore*0.4
}

// normalize prepares a string for comparison
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimPrefix(s, "a ")
	s = strings.TrimPrefix(s, "an ")
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

// stringSimilarity calculates token overlap between two strings (0.0 - 1.0)
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	matches := 0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			if ta == tb {
				matches++
				break
			}
		}
	}

	// Jaccard-like similarity
	total := len(tokensA) + len(tokensB) - matches
	if total == 0 {
		return 0.0
	}
	return float64(matches) / float64(total)
}
