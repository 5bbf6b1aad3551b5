package book

import (
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	// DescriptionMaxRunes bounds free-text descriptions kept on a record.
	DescriptionMaxRunes = 1000

	// ListSeparator joins multi-valued fields such as authors and categories.
	ListSeparator = ", "

	minPlausibleYear = 1000
)

// coverQueryNoise are query parameters that only change how an image host
// renders the same picture. Leaving them in makes identical covers look
// different to URL comparison.
var coverQueryNoise = map[string]bool{
	"zoom": true,
	"edge": true,
}

// Normalize applies the canonical field rules to a record built by an adapter.
// It never fails: values that cannot be interpreted are dropped.
func Normalize(r Record) Record {
	r.Title = CleanText(r.Title)
	r.Author = CleanText(r.Author)
	r.ISBN = strings.TrimSpace(r.ISBN)
	r.Publisher = CleanText(r.Publisher)
	r.Subtitle = CleanText(r.Subtitle)
	r.Categories = CleanText(r.Categories)
	r.Language = NormalizeLanguage(r.Language)
	r.Description = Truncate(CleanText(r.Description), DescriptionMaxRunes)
	r.CoverURL = NormalizeCoverURL(r.CoverURL)

	if r.PublishYear != nil && !plausibleYear(*r.PublishYear) {
		r.PublishYear = nil
	}
	if r.PageCount != nil && *r.PageCount <= 0 {
		r.PageCount = nil
	}
	return r
}

// CleanText unescapes HTML entities, trims, and collapses runs of whitespace
// into a single space.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// ParseInt converts a numeric-looking string to an int. Anything else,
// including an empty string, yields nil.
func ParseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// PositiveInt returns a pointer to n, or nil when n is not positive.
func PositiveInt(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// ParseYear accepts exactly four digits forming a plausible publication year.
func ParseYear(s string) *int {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return nil
	}
	n := ParseInt(s)
	if n == nil || !plausibleYear(*n) {
		return nil
	}
	return n
}

// YearFromDate extracts a year from a free-form publication date. It tries
// the leading four characters ("2005-03-01") and then the digits among the
// trailing four ("March 2005").
func YearFromDate(date string) *int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return nil
	}
	if y := ParseYear(date[:4]); y != nil {
		return y
	}
	tail := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, date[len(date)-4:])
	return ParseYear(tail)
}

func plausibleYear(y int) bool {
	return y >= minPlausibleYear && y <= time.Now().Year()+1
}

// PickISBN returns the first non-empty identifier, so callers pass the
// ISBN-13 before the ISBN-10.
func PickISBN(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// NormalizeISBN strips hyphens and spaces from an ISBN.
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return strings.TrimSpace(normalized)
}

// NormalizeCoverURL upgrades the scheme to https, completes protocol-relative
// URLs, and drops rendering-only query parameters. Non-http URLs are rejected.
func NormalizeCoverURL(raw string) string {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = "https"
	default:
		return ""
	}

	if u.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, part := range strings.Split(u.RawQuery, "&") {
			if part == "" {
				continue
			}
			key, _, _ := strings.Cut(part, "=")
			if coverQueryNoise[strings.ToLower(key)] {
				continue
			}
			kept = append(kept, part)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	return u.String()
}

// ResolveURL resolves href against base. It returns "" when either cannot be
// parsed.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// JoinList cleans, de-duplicates and joins values with ListSeparator, keeping
// at most max entries (max <= 0 keeps all).
func JoinList(values []string, max int) string {
	seen := make(map[string]bool, len(values))
	kept := make([]string, 0, len(values))
	for _, v := range values {
		v = CleanText(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		kept = append(kept, v)
		if max > 0 && len(kept) == max {
			break
		}
	}
	return strings.Join(kept, ListSeparator)
}

// Truncate shortens s to at most maxRunes runes.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace)
}

// NormalizeLanguage maps language identifiers such as "tr", "tur", "en-US" or
// "/languages/eng" to a short base code. Unknown values are dropped.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.LastIndex(code, "/"); i >= 0 {
		code = code[i+1:]
	}
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "und" {
		return ""
	}
	return base.String()
}
