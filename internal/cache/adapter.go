package cache

import (
	"context"
	"strings"
	"time"

	"github.com/lepinkainen/kitaplik/internal/book"
)

// CachedAdapter wraps a book.Adapter and keeps its successful search
// responses in the cache database. Failed calls are never stored, so a source
// that is down is retried on the next search.
type CachedAdapter struct {
	book.Adapter

	db    *CacheDB
	table string
	ttl   time.Duration
}

// Compile-time check that CachedAdapter implements book.Adapter.
var _ book.Adapter = (*CachedAdapter)(nil)

// NewCachedAdapter wraps a. A non-positive ttl means DefaultCacheTTL.
func NewCachedAdapter(db *CacheDB, a book.Adapter, ttl time.Duration) (*CachedAdapter, error) {
	table, err := TableForSource(a.Source())
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAdapter{Adapter: a, db: db, table: table, ttl: ttl}, nil
}

// Wrap puts every adapter behind the cache. Adapters without a cache table
// are returned unwrapped.
func Wrap(db *CacheDB, ttl time.Duration, adapters []book.Adapter) []book.Adapter {
	wrapped := make([]book.Adapter, 0, len(adapters))
	for _, a := range adapters {
		ca, err := NewCachedAdapter(db, a, ttl)
		if err != nil {
			wrapped = append(wrapped, a)
			continue
		}
		wrapped = append(wrapped, ca)
	}
	return wrapped
}

// Search returns the cached response for (kind, query) or asks the wrapped
// adapter.
func (c *CachedAdapter) Search(ctx context.Context, query string, kind book.Kind) ([]book.Record, error) {
	records, _, err := GetOrFetch(c.db, c.table, SearchKey(kind, query),
		func() ([]book.Record, error) {
			records, err := c.Adapter.Search(ctx, query, kind)
			if err == nil && records == nil {
				records = []book.Record{}
			}
			return records, err
		},
		SelectNegativeCacheTTL(c.ttl, func(r []book.Record) bool { return len(r) == 0 }),
	)
	return records, err
}

// SearchKey builds the cache key for a query. Case and inner whitespace do
// not produce separate entries.
func SearchKey(kind book.Kind, query string) string {
	return string(kind) + ":" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
