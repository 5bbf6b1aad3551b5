package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/kitaplik/internal/book"
)

type countingAdapter struct {
	source  book.Source
	records []book.Record
	err     error
	calls   int
}

func (a *countingAdapter) Name() string                   { return string(a.source) }
func (a *countingAdapter) Source() book.Source            { return a.source }
func (a *countingAdapter) Priority() int                  { return 0 }
func (a *countingAdapter) Kinds() []book.Kind             { return []book.Kind{book.KindTitle, book.KindISBN} }
func (a *countingAdapter) Ping(ctx context.Context) error { return nil }

func (a *countingAdapter) Search(ctx context.Context, query string, kind book.Kind) ([]book.Record, error) {
	a.calls++
	return a.records, a.err
}

func TestCachedAdapterServesRepeatSearches(t *testing.T) {
	db, _ := setupTestCache(t)

	year := 1866
	inner := &countingAdapter{
		source: book.SourceGoogle,
		records: []book.Record{{
			Title:       "Suç ve Ceza",
			Author:      "Dostoyevski",
			PublishYear: &year,
			CoverURL:    "https://img/x.jpg",
		}},
	}
	cached, err := NewCachedAdapter(db, inner, time.Hour)
	require.NoError(t, err)

	first, err := cached.Search(context.Background(), "Suç ve Ceza", book.KindTitle)
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), "  suç   VE ceza ", book.KindTitle)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "whitespace and case variants share an entry")
	assert.Equal(t, first, second)
	require.NotNil(t, second[0].PublishYear)
	assert.Equal(t, 1866, *second[0].PublishYear)

	_, err = cached.Search(context.Background(), "Suç ve Ceza", book.KindISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "kind is part of the key")
}

func TestCachedAdapterDoesNotCacheFailures(t *testing.T) {
	db, _ := setupTestCache(t)

	inner := &countingAdapter{source: book.SourceKitapyurdu, err: errors.New("HTTP 503")}
	cached, err := NewCachedAdapter(db, inner, time.Hour)
	require.NoError(t, err)

	for range 2 {
		records, err := cached.Search(context.Background(), "dune", book.KindTitle)
		assert.Error(t, err)
		assert.Nil(t, records)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestCachedAdapterNegativeEntriesExpireSooner(t *testing.T) {
	db, clock := setupTestCache(t)

	inner := &countingAdapter{source: book.SourceOpenLibrary}
	cached, err := NewCachedAdapter(db, inner, DefaultCacheTTL)
	require.NoError(t, err)

	records, err := cached.Search(context.Background(), "nothing", book.KindTitle)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	records, err = cached.Search(context.Background(), "nothing", book.KindTitle)
	require.NoError(t, err)
	assert.NotNil(t, records, "cached empty result decodes to an empty slice")
	assert.Equal(t, 1, inner.calls)

	clock.Advance(NegativeCacheTTL)
	_, err = cached.Search(context.Background(), "nothing", book.KindTitle)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedAdapterKeepsMetadata(t *testing.T) {
	db, _ := setupTestCache(t)

	inner := &countingAdapter{source: book.SourceBKMKitap}
	cached, err := NewCachedAdapter(db, inner, 0)
	require.NoError(t, err)

	assert.Equal(t, book.SourceBKMKitap, cached.Source())
	assert.Equal(t, "bkmkitap", cached.Name())
	assert.True(t, book.Supports(cached, book.KindISBN))
	assert.Same(t, inner, cached.Adapter)
	assert.Equal(t, DefaultCacheTTL, cached.ttl)
	assert.Equal(t, "bkmkitap_cache", cached.table)
}

func TestWrap(t *testing.T) {
	db, _ := setupTestCache(t)

	known := &countingAdapter{source: book.SourceKitap1000}
	unknown := &countingAdapter{source: book.Source("amazon")}

	wrapped := Wrap(db, time.Hour, []book.Adapter{known, unknown})
	require.Len(t, wrapped, 2)

	_, ok := wrapped[0].(*CachedAdapter)
	assert.True(t, ok)
	assert.Same(t, unknown, wrapped[1])
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "title:suç ve ceza", SearchKey(book.KindTitle, "  Suç\tve  Ceza "))
	assert.Equal(t, "isbn:9780143058142", SearchKey(book.KindISBN, "9780143058142"))
	assert.NotEqual(t, SearchKey(book.KindTitle, "x"), SearchKey(book.KindAuthor, "x"))
}
