package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/kitaplik/internal/book"
	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
)

// scrapeHit is one search result as read off a storefront page. Fields may be
// raw markup text; book.Normalize cleans them up.
type scrapeHit struct {
	Title     string
	Author    string
	Publisher string
	ISBN      string
	CoverURL  string
}

// page is a downloaded search page. The goquery document is built on first
// use and shared by every strategy.
type page struct {
	url  string
	html string

	doc    *goquery.Document
	docErr error
	parsed bool
}

func newPage(pageURL string, body []byte) *page {
	return &page{url: pageURL, html: string(body)}
}

// Doc returns the parsed document, or nil if the markup could not be parsed.
func (p *page) Doc() *goquery.Document {
	if !p.parsed {
		p.parsed = true
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(p.html))
		if p.docErr != nil {
			slog.Debug("Could not parse page", "url", p.url, "error", p.docErr)
		}
	}
	return p.doc
}

// strategy is one way of reading hits off a page. Strategies never fail: a
// page that does not have the shape a strategy expects yields no hits.
type strategy struct {
	name    string
	extract func(p *page) []scrapeHit
}

// scraper is the shared implementation behind the storefront adapters. Only
// title searches are supported; the sites have no reliable author or ISBN
// search form.
type scraper struct {
	*transport

	name      string
	source    book.Source
	priority  int
	searchURL func(query string) string
	homeURL   func() string

	strategies []strategy
}

func (s *scraper) Name() string {
	return s.name
}

func (s *scraper) Source() book.Source {
	return s.source
}

func (s *scraper) Priority() int {
	return s.priority
}

func (s *scraper) Kinds() []book.Kind {
	return []book.Kind{book.KindTitle}
}

// Ping loads the site's home page. A bot-challenge page counts as a failure.
func (s *scraper) Ping(ctx context.Context) error {
	homeURL := s.homeURL()
	body, err := s.fetch(ctx, homeURL)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", s.name, err)
	}
	if reason := challengeReason(string(body)); reason != "" {
		return fmt.Errorf("%s ping failed: %w", s.name, &kerrors.BlockedError{URL: homeURL, Reason: reason})
	}
	return nil
}

// Search downloads the site's search page for query and runs the extraction
// strategies in order until one produces titled hits.
func (s *scraper) Search(ctx context.Context, query string, kind book.Kind) ([]book.Record, error) {
	if kind != book.KindTitle {
		return nil, fmt.Errorf("%s: %w: %s", s.name, book.ErrUnsupportedKind, kind)
	}

	pageURL := s.searchURL(query)
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	p := newPage(pageURL, body)
	hits, used := s.extract(p)
	if len(hits) == 0 {
		if reason := challengeReason(p.html); reason != "" {
			return nil, fmt.Errorf("%s: %w", s.name, &kerrors.BlockedError{URL: pageURL, Reason: reason})
		}
		slog.Debug("No results on page", "source", s.source, "url", pageURL)
		return []book.Record{}, nil
	}

	records := make([]book.Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, hit.toRecord(s.source, pageURL))
	}
	slog.Debug("Scraped search page", "source", s.source, "strategy", used, "results", len(records))
	return records, nil
}

// extract runs the strategies in order. The first one with at least one
// titled hit wins; its hits are capped at maxHitsPerSource.
func (s *scraper) extract(p *page) ([]scrapeHit, string) {
	for _, st := range s.strategies {
		hits := titled(st.extract(p))
		if len(hits) == 0 {
			continue
		}
		if len(hits) > maxHitsPerSource {
			hits = hits[:maxHitsPerSource]
		}
		return hits, st.name
	}
	return nil, ""
}

func titled(hits []scrapeHit) []scrapeHit {
	out := hits[:0:0]
	for _, h := range hits {
		if book.CleanText(h.Title) != "" {
			out = append(out, h)
		}
	}
	return out
}

func (h scrapeHit) toRecord(src book.Source, pageURL string) book.Record {
	return book.Record{
		Title:     h.Title,
		Author:    h.Author,
		Publisher: h.Publisher,
		ISBN:      book.NormalizeISBN(h.ISBN),
		CoverURL:  book.ResolveURL(pageURL, strings.TrimSpace(h.CoverURL)),
		Source:    src,
	}
}

var challengeMarkers = []struct {
	marker string
	reason string
}{
	{"<title>Just a moment...</title>", "cloudflare-challenge"},
	{"cf-browser-verification", "cloudflare-challenge"},
	{"<title>Attention Required!", "cloudflare-block"},
}

// challengeReason recognises bot-challenge interstitials. It is only
// consulted when no strategy found anything, since normal pages can carry the
// same scripts.
func challengeReason(html string) string {
	for _, m := range challengeMarkers {
		if strings.Contains(html, m.marker) {
			return m.reason
		}
	}
	return ""
}

// imageSource returns the lazy-load source of an <img>, falling back to src.
// Placeholder data URIs are skipped.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-original", "data-lazy", "src"} {
		v, ok := img.Attr(attr)
		v = strings.TrimSpace(v)
		if ok && v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// firstText returns the trimmed text of the first selector that matches with
// non-empty text.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstAttr returns the attribute of the first selector match that has it.
func firstAttr(s *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := s.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// submatch returns capture group 1 of the first match of re in s.
func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// splitBlocks splits html at every match of re and returns the chunks after
// each match, i.e. one chunk per product card.
func splitBlocks(re *regexp.Regexp, html string) []string {
	parts := re.Split(html, -1)
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

// jsonLDStrategy reads schema.org Book and Product objects from
// application/ld+json blocks.
func jsonLDStrategy(p *page) []scrapeHit {
	doc := p.Doc()
	if doc == nil {
		return nil
	}

	var hits []scrapeHit
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := bytes.TrimSpace([]byte(s.Text()))
		if len(raw) == 0 {
			return
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return
		}
		collectLD(v, &hits)
	})
	return hits
}

// collectLD walks a decoded JSON-LD value, including @graph arrays and
// ItemList wrappers, and appends one hit per Book or Product object.
func collectLD(v any, hits *[]scrapeHit) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			collectLD(item, hits)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			collectLD(graph, hits)
		}
		if items, ok := node["itemListElement"]; ok {
			collectLD(items, hits)
		}
		if item, ok := node["item"]; ok {
			collectLD(item, hits)
		}
		if !hasLDType(node["@type"], "Book", "Product") {
			return
		}
		*hits = append(*hits, scrapeHit{
			Title:     ldString(node["name"]),
			Author:    ldName(node["author"]),
			Publisher: ldName(node["publisher"]),
			ISBN:      firstNonEmpty(ldString(node["isbn"]), ldString(node["gtin13"])),
			CoverURL:  ldImage(node["image"]),
		})
	}
}

func hasLDType(v any, want ...string) bool {
	switch t := v.(type) {
	case string:
		for _, w := range want {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if hasLDType(item, want...) {
				return true
			}
		}
	}
	return false
}

func ldString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// ldName reads a person or organisation given as a string, an object with a
// name, or a list of either.
func ldName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return ldString(t["name"])
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			names = append(names, ldName(item))
		}
		return book.JoinList(names, 2)
	}
	return ""
}

func ldImage(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return firstNonEmpty(ldString(t["url"]), ldString(t["contentUrl"]))
	case []any:
		for _, item := range t {
			if img := ldImage(item); img != "" {
				return img
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
