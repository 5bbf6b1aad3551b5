package sources

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lepinkainen/kitaplik/internal/book"
)

var kitap1000BaseURL = "https://1000kitap.com"

// Kitap1000 implements book.Adapter by reading 1000kitap.com search pages.
// The site renders results client-side more often than not, so the inline
// JSON fallback matters here.
type Kitap1000 struct {
	*scraper
}

// Compile-time check that Kitap1000 implements book.Adapter.
var _ book.Adapter = (*Kitap1000)(nil)

// NewKitap1000 creates a new 1000Kitap adapter.
func NewKitap1000(opts Options) *Kitap1000 {
	return &Kitap1000{scraper: &scraper{
		transport: newTransport("1000Kitap", true, opts),
		name:      "1000Kitap",
		source:    book.SourceKitap1000,
		priority:  kitap1000Priority,
		searchURL: func(query string) string {
			return kitap1000BaseURL + "/ara?q=" + url.QueryEscape(query)
		},
		homeURL: func() string { return kitap1000BaseURL + "/" },
		strategies: []strategy{
			{name: "patterns", extract: kitap1000Patterns},
			{name: "jsonld", extract: jsonLDStrategy},
			{name: "inline-json", extract: kitap1000InlineJSON},
		},
	}}
}

var (
	// A book link carrying its title, followed by the author link.
	kitap1000TitleAuthorRe = regexp.MustCompile(`(?s)<a[^>]*href="/kitap/[^"]*"[^>]*title="([^"]+)"[^>]*>.*?</a>.*?<a[^>]*href="/yazar/[^"]*"[^>]*>([^<]+)</a>`)
	kitap1000CoverRe       = regexp.MustCompile(`(?i)<img[^>]*(?:data-src|src)="(https://[^"]*(?:covers|images|img)[^"]*\.(?:jpg|jpeg|png|webp))"`)
	kitap1000InlineBookRe  = regexp.MustCompile(`\{"@type":"Book"[^}]*?"name":"((?:[^"\\]|\\.)*)"[^}]*?"author":\{[^}]*?"name":"((?:[^"\\]|\\.)*)"[^}]*\}[^}]*?"image":"((?:[^"\\]|\\.)*)"`)
)

// kitap1000Patterns pairs title/author matches with cover images by position.
func kitap1000Patterns(p *page) []scrapeHit {
	matches := kitap1000TitleAuthorRe.FindAllStringSubmatch(p.html, maxHitsPerSource)
	if len(matches) == 0 {
		return nil
	}
	covers := kitap1000CoverRe.FindAllStringSubmatch(p.html, -1)

	hits := make([]scrapeHit, 0, len(matches))
	for i, m := range matches {
		hit := scrapeHit{
			Title:  strings.TrimSpace(m[1]),
			Author: strings.TrimSpace(m[2]),
		}
		if i < len(covers) {
			hit.CoverURL = covers[i][1]
		}
		hits = append(hits, hit)
	}
	return hits
}

// kitap1000InlineJSON reads Book objects embedded in script state rather than
// in ld+json blocks.
func kitap1000InlineJSON(p *page) []scrapeHit {
	matches := kitap1000InlineBookRe.FindAllStringSubmatch(p.html, maxHitsPerSource)

	hits := make([]scrapeHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, scrapeHit{
			Title:    jsonUnescape(m[1]),
			Author:   jsonUnescape(m[2]),
			CoverURL: jsonUnescape(m[3]),
		})
	}
	return hits
}

// jsonUnescape decodes the escapes of a JSON string body. Values that do not
// decode are returned as they were.
func jsonUnescape(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	if !strings.Contains(s, `\`) {
		return s
	}
	decoded, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return decoded
}
