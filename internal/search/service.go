// Package search is the entry point callers use to look books up. It routes a
// query to the sources that can answer it, merges what they return, and
// offers the follow-up operations on a chosen record.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/fileutil"
	"github.com/lepinkainen/kitaplik/internal/store"
)

// Routes lists, per query kind, the sources consulted and their order.
var Routes = map[book.Kind][]book.Source{
	book.KindTitle: {
		book.SourceGoogle,
		book.SourceKitapyurdu,
		book.SourceBKMKitap,
		book.SourceKitap1000,
		book.SourceOpenLibrary,
	},
	book.KindAuthor: {book.SourceGoogle, book.SourceOpenLibrary},
	book.KindISBN:   {book.SourceGoogle, book.SourceOpenLibrary},
}

// Service answers searches over a fixed set of adapters.
type Service struct {
	adapters map[book.Source]book.Adapter
	limit    int
	timeout  time.Duration
	covers   *fileutil.CoverFetcher
}

// Option configures a Service.
type Option func(*Service)

// WithLimit caps the merged result list. Values outside 1..15 fall back to
// the default of 15.
func WithLimit(limit int) Option {
	return func(s *Service) {
		s.limit = limit
	}
}

// WithTimeout bounds each adapter call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithCoverFetcher sets the fetcher used by FetchCover.
func WithCoverFetcher(f *fileutil.CoverFetcher) Option {
	return func(s *Service) {
		s.covers = f
	}
}

// New creates a Service over adapters. When two adapters share a source the
// first one wins.
func New(adapters []book.Adapter, opts ...Option) *Service {
	s := &Service{
		adapters: make(map[book.Source]book.Adapter, len(adapters)),
		limit:    book.MaxResults,
		timeout:  book.DefaultTimeout,
	}
	for _, a := range adapters {
		if _, dup := s.adapters[a.Source()]; !dup {
			s.adapters[a.Source()] = a
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.covers == nil {
		s.covers = fileutil.NewCoverFetcher("")
	}
	return s
}

// route returns the adapters consulted for kind, in routing order.
func (s *Service) route(kind book.Kind) []book.Adapter {
	selected := make([]book.Adapter, 0, len(Routes[kind]))
	for _, src := range Routes[kind] {
		if a, ok := s.adapters[src]; ok {
			selected = append(selected, a)
		}
	}
	return selected
}

// Search returns the merged, ranked records for query. A blank query or an
// unknown kind yields an empty result without any network call. ISBN queries
// are normalized before they are sent out.
func (s *Service) Search(ctx context.Context, query string, kind book.Kind) []book.Record {
	query = strings.TrimSpace(query)
	if kind == book.KindISBN {
		query = book.NormalizeISBN(query)
	}
	adapters := s.route(kind)
	if query == "" || len(adapters) == 0 {
		return []book.Record{}
	}

	slog.Debug("Searching", "query", query, "kind", kind, "sources", len(adapters))
	agg := book.NewAggregator(book.NewPriorityMerger(s.limit), s.timeout, adapters...)
	return agg.Search(ctx, query, kind)
}

// LookupISBN asks the ISBN sources one at a time and returns the first record
// found.
func (s *Service) LookupISBN(ctx context.Context, isbn string) (book.Record, bool) {
	isbn = book.NormalizeISBN(isbn)
	if isbn == "" {
		return book.Record{}, false
	}

	for _, a := range s.route(book.KindISBN) {
		results := book.NewAggregator(nil, s.timeout, a).Collect(ctx, isbn, book.KindISBN)
		for _, r := range results {
			if r.OK() && len(r.Records) > 0 {
				slog.Debug("ISBN found", "isbn", isbn, "source", r.Source)
				return r.Records[0], true
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return book.Record{}, false
}

// FetchCover downloads rec's cover, named after its ISBN when it has one.
func (s *Service) FetchCover(ctx context.Context, rec book.Record) (string, bool) {
	if rec.CoverURL == "" {
		return "", false
	}
	return s.covers.Fetch(ctx, rec.CoverURL, rec.ISBN)
}

// Health pings every source concurrently. A nil entry means the source is
// reachable.
func (s *Service) Health(ctx context.Context) map[book.Source]error {
	var (
		mu     sync.Mutex
		status = make(map[book.Source]error, len(s.adapters))
		g      errgroup.Group
	)
	for src, a := range s.adapters {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			err := a.Ping(pingCtx)
			mu.Lock()
			status[src] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return status
}

// Commit stores a chosen record, together with its downloaded cover if any,
// and returns the new record id.
func (s *Service) Commit(ctx context.Context, st store.RecordStore, rec book.Record, coverPath string) (int64, error) {
	fields := rec.Fields()
	if coverPath != "" {
		fields["cover_path"] = coverPath
	}
	id, err := st.InsertRecord(ctx, fields)
	if err != nil {
		return 0, fmt.Errorf("committing %q: %w", rec.Title, err)
	}
	slog.Info("Record saved", "id", id, "title", rec.Title, "source", rec.Source)
	return id, nil
}
