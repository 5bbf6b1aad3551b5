package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/kitaplik/internal/book"
)

var kitapyurduBaseURL = "https://www.kitapyurdu.com"

// Kitapyurdu implements book.Adapter by reading kitapyurdu.com search pages.
type Kitapyurdu struct {
	*scraper
}

// Compile-time check that Kitapyurdu implements book.Adapter.
var _ book.Adapter = (*Kitapyurdu)(nil)

// NewKitapyurdu creates a new Kitapyurdu adapter.
func NewKitapyurdu(opts Options) *Kitapyurdu {
	return &Kitapyurdu{scraper: &scraper{
		transport: newTransport("Kitapyurdu", true, opts),
		name:      "Kitapyurdu",
		source:    book.SourceKitapyurdu,
		priority:  kitapyurduPriority,
		searchURL: func(query string) string {
			return kitapyurduBaseURL + "/index.php?route=product/search&filter_name=" + url.QueryEscape(query)
		},
		homeURL: func() string { return kitapyurduBaseURL + "/" },
		strategies: []strategy{
			{name: "cards", extract: kitapyurduCards},
			{name: "patterns", extract: kitapyurduPatterns},
			{name: "jsonld", extract: jsonLDStrategy},
		},
	}}
}

func kitapyurduCards(p *page) []scrapeHit {
	doc := p.Doc()
	if doc == nil {
		return nil
	}

	var hits []scrapeHit
	doc.Find(".product-cr").Each(func(_ int, s *goquery.Selection) {
		title := firstAttr(s, "title", "a.pr-img-link")
		if title == "" {
			title = firstText(s, ".name a", ".name span", ".name")
		}
		hits = append(hits, scrapeHit{
			Title:     title,
			Author:    firstText(s, ".author a", ".author span", ".author"),
			Publisher: firstText(s, ".publisher a", ".publisher span", ".publisher"),
			CoverURL:  imageSource(s.Find("img").First()),
		})
	})
	return hits
}

// Legacy markup patterns, applied per product block.
var (
	kitapyurduBlockRe     = regexp.MustCompile(`<div[^>]*class="[^"]*product-cr[^"]*"[^>]*>`)
	kitapyurduTitleRe     = regexp.MustCompile(`<a[^>]*class="[^"]*pr-img-link[^"]*"[^>]*title="([^"]+)"`)
	kitapyurduNameRe      = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*name[^"]*"[^>]*>.*?<a[^>]*>([^<]+)</a>`)
	kitapyurduAuthorRe    = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*author[^"]*"[^>]*>\s*<a[^>]*>([^<]+)</a>`)
	kitapyurduLazyImgRe   = regexp.MustCompile(`<img[^>]*(?:data-src|src)="([^"]+)"[^>]*class="[^"]*lazy`)
	kitapyurduImgRe       = regexp.MustCompile(`(?i)<img[^>]*src="(https://[^"]+\.(?:jpg|jpeg|png|webp))"`)
	kitapyurduPublisherRe = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*publisher[^"]*"[^>]*>.*?<span>([^<]+)</span>`)
)

func kitapyurduPatterns(p *page) []scrapeHit {
	blocks := splitBlocks(kitapyurduBlockRe, p.html)
	if len(blocks) > maxHitsPerSource {
		blocks = blocks[:maxHitsPerSource]
	}

	hits := make([]scrapeHit, 0, len(blocks))
	for _, block := range blocks {
		title := submatch(kitapyurduTitleRe, block)
		if title == "" {
			title = submatch(kitapyurduNameRe, block)
		}
		cover := submatch(kitapyurduLazyImgRe, block)
		if cover == "" || strings.HasPrefix(cover, "data:") {
			cover = submatch(kitapyurduImgRe, block)
		}
		hits = append(hits, scrapeHit{
			Title:     title,
			Author:    submatch(kitapyurduAuthorRe, block),
			Publisher: submatch(kitapyurduPublisherRe, block),
			CoverURL:  cover,
		})
	}
	return hits
}
