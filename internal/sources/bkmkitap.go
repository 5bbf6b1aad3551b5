package sources

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/kitaplik/internal/book"
)

var bkmKitapBaseURL = "https://www.bkmkitap.com"

// BKMKitap implements book.Adapter by reading bkmkitap.com search pages.
type BKMKitap struct {
	*scraper
}

// Compile-time check that BKMKitap implements book.Adapter.
var _ book.Adapter = (*BKMKitap)(nil)

// NewBKMKitap creates a new BKM Kitap adapter.
func NewBKMKitap(opts Options) *BKMKitap {
	return &BKMKitap{scraper: &scraper{
		transport: newTransport("BKMKitap", true, opts),
		name:      "BKM Kitap",
		source:    book.SourceBKMKitap,
		priority:  bkmKitapPriority,
		searchURL: func(query string) string {
			return bkmKitapBaseURL + "/arama?q=" + url.QueryEscape(query)
		},
		homeURL: func() string { return bkmKitapBaseURL + "/" },
		strategies: []strategy{
			{name: "cards", extract: bkmKitapCards},
			{name: "patterns", extract: bkmKitapPatterns},
			{name: "jsonld", extract: jsonLDStrategy},
		},
	}}
}

func bkmKitapCards(p *page) []scrapeHit {
	doc := p.Doc()
	if doc == nil {
		return nil
	}

	var hits []scrapeHit
	doc.Find(".productItem").Each(func(_ int, s *goquery.Selection) {
		title := firstAttr(s, "title", "a.productName")
		if title == "" {
			title = firstText(s, ".productName a", ".productName")
		}
		hits = append(hits, scrapeHit{
			Title:     title,
			Author:    firstText(s, "a.productAuthor", ".productAuthor"),
			Publisher: firstText(s, "a.productBrand", ".productPublisher"),
			CoverURL:  imageSource(s.Find("img").First()),
		})
	})
	return hits
}

var (
	bkmKitapBlockRe   = regexp.MustCompile(`<div[^>]*class="[^"]*productItem[^"]*"`)
	bkmKitapTitleRe   = regexp.MustCompile(`<a[^>]*class="[^"]*productName[^"]*"[^>]*title="([^"]+)"`)
	bkmKitapNameRe    = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*productName[^"]*"[^>]*>.*?<a[^>]*>([^<]+)</a>`)
	bkmKitapAuthorRe  = regexp.MustCompile(`<a[^>]*class="[^"]*productAuthor[^"]*"[^>]*>([^<]+)</a>`)
	bkmKitapLazyImgRe = regexp.MustCompile(`<img[^>]*data-src="([^"]+)"`)
	bkmKitapImgRe     = regexp.MustCompile(`(?i)<img[^>]*src="(https://[^"]+\.(?:jpg|jpeg|png))"`)
)

func bkmKitapPatterns(p *page) []scrapeHit {
	blocks := splitBlocks(bkmKitapBlockRe, p.html)
	if len(blocks) > maxHitsPerSource {
		blocks = blocks[:maxHitsPerSource]
	}

	hits := make([]scrapeHit, 0, len(blocks))
	for _, block := range blocks {
		title := submatch(bkmKitapTitleRe, block)
		if title == "" {
			title = submatch(bkmKitapNameRe, block)
		}
		cover := submatch(bkmKitapLazyImgRe, block)
		if cover == "" {
			cover = submatch(bkmKitapImgRe, block)
		}
		hits = append(hits, scrapeHit{
			Title:    title,
			Author:   submatch(bkmKitapAuthorRe, block),
			CoverURL: cover,
		})
	}
	return hits
}
