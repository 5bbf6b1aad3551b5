package cmd

import (
	"log/slog"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/cache"
	"github.com/lepinkainen/kitaplik/internal/config"
	"github.com/lepinkainen/kitaplik/internal/fileutil"
	"github.com/lepinkainen/kitaplik/internal/search"
	"github.com/lepinkainen/kitaplik/internal/sources"
	"github.com/lepinkainen/kitaplik/internal/store"
	"github.com/lepinkainen/kitaplik/internal/tui"
)

// Overridable in tests.
var (
	newAdapters = sources.New
	openStore   = func(path string) (store.RecordStore, error) { return store.Open(path) }
	pickRecord  = tui.Pick
)

func sourceOptions() sources.Options {
	return sources.Options{
		Timeout:           config.SourceTimeout,
		AuthorTimeout:     config.AuthorTimeout,
		RequestsPerSecond: config.RequestsPerSecond,
		UserAgent:         config.UserAgent,
		GoogleBooksAPIKey: config.GoogleBooksAPIKey,
		LangRestrict:      config.LangRestrict,
	}
}

// newAdapterSet builds every source adapter and, when enabled, puts the
// response cache in front of them. A cache that cannot be opened is logged
// and skipped.
func newAdapterSet() []book.Adapter {
	adapters := newAdapters(sourceOptions())
	if !config.CacheEnabled {
		return adapters
	}

	db, err := cache.GetGlobalCache()
	if err != nil {
		slog.Warn("Cache unavailable, querying sources directly", "error", err)
		return adapters
	}
	return cache.Wrap(db, config.CacheTTL, adapters)
}

func newCoverFetcher() *fileutil.CoverFetcher {
	f := fileutil.NewCoverFetcher(config.CoversDir)
	if config.CoverMinBytes > 0 {
		f.MinBytes = config.CoverMinBytes
	}
	f.MaxWidth = config.CoverMaxWidth
	f.Overwrite = config.UpdateCovers
	return f
}

func newService(opts ...search.Option) *search.Service {
	base := []search.Option{
		search.WithLimit(config.SearchLimit),
		search.WithTimeout(config.SourceTimeout),
		search.WithCoverFetcher(newCoverFetcher()),
	}
	return search.New(newAdapterSet(), append(base, opts...)...)
}
