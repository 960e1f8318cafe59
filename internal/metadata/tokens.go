package metadata

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var titlePatterns = []struct {
	pat  *regexp.Regexp
	repl string
}{
	// (2010) (Omnibus) and similar bracketed noise
	{regexp.MustCompile(`(?i)[({\[](\d{4}|omnibus|anthology|hardcover|audiobook|audio\scd|paperback|turtleback|mass\s*market|edition|ed\.)[\])}]`), ""},
	{regexp.MustCompile(`(?i)[({\[][^){}\]]*?(edition|ed\.)[^){}\]]*?[\])}]`), ""},
	// thousands separators
	{regexp.MustCompile(`(\d+),(\d+)`), "$1$2"},
	{regexp.MustCompile(`(\s-)`), " "},
	{regexp.MustCompile("[:,;!@$%^&*(){}.`~\"\\s\\[\\]/《》「」“”]"), " "},
}

var titleJoiners = map[string]bool{"a": true, "and": true, "the": true, "&": true}

// TitleTokens splits a title into search tokens, dropping bracketed edition
// markers, punctuation and joining words
func TitleTokens(title string) []string {
	if title == "" {
		return nil
	}
	for _, p := range titlePatterns {
		title = p.pat.ReplaceAllString(title, p.repl)
	}
	var tokens []string
	for _, tok := range strings.Fields(title) {
		tok = strings.Trim(strings.TrimSpace(tok), `"'`)
		if tok == "" || titleJoiners[strings.ToLower(tok)] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

var (
	authorReplacePat = regexp.MustCompile(`[-+.:;,，。；：]`)
	authorRemovePat  = regexp.MustCompile("[!@#$%^&*()（）「」{}`~\"\\s\\[\\]/]")
)

// AuthorTokens splits author names into search tokens. Names written as
// "Last, First" are rotated to "First Last". Tokens of two characters or
// fewer are dropped, as are name particles.
func AuthorTokens(authors []string, onlyFirst bool) []string {
	if onlyFirst && len(authors) > 1 {
		authors = authors[:1]
	}
	var tokens []string
	for _, au := range authors {
		hasComma := strings.Contains(au, ",")
		parts := strings.Fields(authorReplacePat.ReplaceAllString(au, " "))
		if hasComma && len(parts) > 1 {
			parts = append(parts[1:], parts[0])
		}
		for _, tok := range parts {
			tok = strings.TrimSpace(authorRemovePat.ReplaceAllString(tok, ""))
			if utf8.RuneCountInString(tok) <= 2 {
				continue
			}
			switch strings.ToLower(tok) {
			case "von", "van", "unknown":
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
