// Package httpx builds the HTTP clients used to talk to book catalogs and
// image hosts, and the one GET helper they all share.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
)

const (
	DefaultTimeout = 10 * time.Second

	// Headers a desktop browser sends for a Turkish-locale page load.
	BrowserAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	BrowserAcceptLanguage = "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7"

	// APIUserAgent identifies requests to the structured JSON APIs.
	APIUserAgent = "kitaplik/1.0 (+https://github.com/lepinkainen/kitaplik)"
)

// ErrBodyTooLarge is returned by Get when the response exceeds maxBytes.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Transport fills in a browser identity on every outgoing request that does
// not set its own. Scraped sites and some image hosts refuse requests that
// look like a library client.
type Transport struct {
	Base http.RoundTripper

	// UserAgent pins the User-Agent. Empty means a random pick from the pool
	// per request.
	UserAgent string

	ua *uaPool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// RoundTrip must not modify the caller's request.
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = t.pool().random()
		}
		r.Header.Set("User-Agent", ua)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", BrowserAccept)
	}
	if r.Header.Get("Accept-Language") == "" {
		r.Header.Set("Accept-Language", BrowserAcceptLanguage)
	}
	return base.RoundTrip(r)
}

func (t *Transport) pool() *uaPool {
	if t.ua == nil {
		return globalUA
	}
	return t.ua
}

// NewBrowserClient constructs the client used for scraping and cover
// downloads. A non-positive timeout means DefaultTimeout.
func NewBrowserClient(timeout time.Duration, userAgent string) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:      newBaseTransport(),
			UserAgent: strings.TrimSpace(userAgent),
			ua:        globalUA,
		},
		Timeout: timeout,
	}
}

// NewAPIClient constructs the client used for JSON APIs.
func NewAPIClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &apiTransport{base: newBaseTransport()},
		Timeout:   timeout,
	}
}

type apiTransport struct {
	base http.RoundTripper
}

func (t *apiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", APIUserAgent)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	return t.base.RoundTrip(r)
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Get performs a single GET and returns the body. A 429 becomes a
// RateLimitError, any other non-2xx status an HTTPStatusError. Bodies larger
// than maxBytes are rejected with ErrBodyTooLarge; maxBytes <= 0 means no cap.
// There are no retries.
func Get(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		retry := kerrors.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, kerrors.NewRateLimitErrorWithRetry(
			fmt.Sprintf("rate limited by %s", req.URL.Host), retry)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, kerrors.NewHTTPStatusError(rawURL, resp.StatusCode, resp.Header.Get("Location"))
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrBodyTooLarge)
	}
	return body, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
