package metadata

import (
	"regexp"
	"strings"
)

// CheckISBN validates an ISBN-10 or ISBN-13 and returns it stripped of
// separators. ok is false when the value is not a usable ISBN.
func CheckISBN(raw string) (isbn string, ok bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	isbn = b.String()
	if isbn == "" || allSameDigit(isbn) {
		return "", false
	}

	switch len(isbn) {
	case 10:
		ok = validISBN10(isbn)
	case 13:
		ok = validISBN13(isbn)
	}
	if !ok {
		return "", false
	}
	return isbn, true
}

func validISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		d := isbn[i]
		if d == 'X' {
			return false
		}
		sum += (i + 1) * int(d-'0')
	}
	check := sum % 11
	last := isbn[9]
	if check == 10 {
		return last == 'X'
	}
	return last != 'X' && int(last-'0') == check
}

func validISBN13(isbn string) bool {
	if !strings.HasPrefix(isbn, "978") && !strings.HasPrefix(isbn, "979") {
		return false
	}
	if strings.ContainsRune(isbn, 'X') {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += w * int(isbn[i]-'0')
	}
	check := 10 - sum%10
	if check == 10 {
		check = 0
	}
	return int(isbn[12]-'0') == check
}

func allSameDigit(s string) bool {
	if len(s) < 10 || len(s) > 13 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] || s[i] == 'X' {
			return false
		}
	}
	return true
}

// normalizeISBN removes hyphens and spaces from ISBN
func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	// Handle URN format
	isbn = strings.TrimPrefix(strings.ToLower(isbn), "urn:isbn:")
	return strings.ToUpper(strings.TrimSpace(isbn))
}

var isbnCandidate = regexp.MustCompile(`(?:97[89][-\s]?)?\d(?:[-\s]?\d){8}[-\s]?[\dXx]`)

// FindISBN returns the first valid ISBN embedded in free text, such as a
// PDF subject or keyword list
func FindISBN(s string) string {
	for _, m := range isbnCandidate.FindAllString(s, -1) {
		if isbn, ok := CheckISBN(m); ok {
			return isbn
		}
	}
	return ""
}
