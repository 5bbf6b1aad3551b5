// Package sources implements book.Adapter for every catalog kitaplik
// searches: the Google Books and Open Library JSON APIs, and the Kitapyurdu,
// BKM Kitap and 1000Kitap storefront pages.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/httpx"
	"github.com/lepinkainen/kitaplik/internal/ratelimit"
)

const (
	// maxHitsPerSource caps what one adapter returns for one query.
	maxHitsPerSource = 10

	// maxPageBytes bounds a downloaded page or API response.
	maxPageBytes = 4 << 20

	defaultRequestsPerSecond = 2.0
	defaultAuthorTimeout     = 5 * time.Second
	defaultLangRestrict      = "tr"
)

// Merge priorities. Lower values are merged first.
const (
	googleBooksPriority = 0
	kitapyurduPriority  = 10
	bkmKitapPriority    = 20
	kitap1000Priority   = 30
	openLibraryPriority = 40
)

// Options configures the adapters. Zero values fall back to defaults.
type Options struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration
	// AuthorTimeout bounds the secondary Open Library author-name lookup.
	AuthorTimeout time.Duration
	// RequestsPerSecond is the per-adapter request rate. Negative disables limiting.
	RequestsPerSecond float64
	// UserAgent pins the browser User-Agent for scraped sites.
	UserAgent string
	// GoogleBooksAPIKey is appended to Google Books requests when set.
	GoogleBooksAPIKey string
	// LangRestrict restricts Google Books results to a language. "-" disables it.
	LangRestrict string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = httpx.DefaultTimeout
	}
	if o.AuthorTimeout <= 0 {
		o.AuthorTimeout = defaultAuthorTimeout
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = defaultRequestsPerSecond
	}
	if o.LangRestrict == "" {
		o.LangRestrict = defaultLangRestrict
	}
	if o.LangRestrict == "-" {
		o.LangRestrict = ""
	}
	return o
}

// Client factories, overridable in tests.
var (
	apiClientNew     = httpx.NewAPIClient
	browserClientNew = httpx.NewBrowserClient
)

// transport holds the lazily created HTTP client and limiter every adapter
// owns. One adapter value is safe for concurrent searches.
type transport struct {
	opts        Options
	limiterName string
	browser     bool

	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

func newTransport(name string, browser bool, opts Options) *transport {
	return &transport{
		opts:        opts.withDefaults(),
		limiterName: name,
		browser:     browser,
	}
}

func (t *transport) getHTTPClient() *http.Client {
	t.clientOnce.Do(func() {
		if t.browser {
			t.httpClient = browserClientNew(t.opts.Timeout, t.opts.UserAgent)
		} else {
			t.httpClient = apiClientNew(t.opts.Timeout)
		}
	})
	return t.httpClient
}

func (t *transport) getRateLimiter() *ratelimit.Limiter {
	t.limiterOnce.Do(func() {
		t.rateLimiter = ratelimit.New(t.limiterName, t.opts.RequestsPerSecond)
	})
	return t.rateLimiter
}

// fetch waits for the limiter and downloads rawURL. Waiting counts against
// the caller's deadline.
func (t *transport) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := t.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}
	body, err := httpx.Get(ctx, t.getHTTPClient(), rawURL, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.limiterName, err)
	}
	return body, nil
}

// New returns one adapter per known source, in merge priority order.
func New(opts Options) []book.Adapter {
	return []book.Adapter{
		NewGoogleBooks(opts),
		NewKitapyurdu(opts),
		NewBKMKitap(opts),
		NewKitap1000(opts),
		NewOpenLibrary(opts),
	}
}

// ForSource returns the adapter for a single source.
func ForSource(src book.Source, opts Options) (book.Adapter, error) {
	switch src {
	case book.SourceGoogle:
		return NewGoogleBooks(opts), nil
	case book.SourceKitapyurdu:
		return NewKitapyurdu(opts), nil
	case book.SourceBKMKitap:
		return NewBKMKitap(opts), nil
	case book.SourceKitap1000:
		return NewKitap1000(opts), nil
	case book.SourceOpenLibrary:
		return NewOpenLibrary(opts), nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}
