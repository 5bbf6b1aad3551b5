package book

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single adapter call.
const DefaultTimeout = 10 * time.Second

// Aggregator fans a query out to a set of adapters and merges what comes back.
// It holds no per-search state, so one Aggregator can serve concurrent searches.
type Aggregator struct {
	adapters []Adapter
	merger   Merger
	timeout  time.Duration
}

// NewAggregator creates an Aggregator over adapters. A nil merger means a
// PriorityMerger with the default cap; a non-positive timeout means
// DefaultTimeout.
func NewAggregator(merger Merger, timeout time.Duration, adapters ...Adapter) *Aggregator {
	if merger == nil {
		merger = NewPriorityMerger(MaxResults)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{
		adapters: adapters,
		merger:   merger,
		timeout:  timeout,
	}
}

// Search queries every adapter that supports kind and returns the merged,
// ranked records. It never fails; a search where every source failed returns
// an empty list.
func (a *Aggregator) Search(ctx context.Context, query string, kind Kind) []Record {
	return a.merger.Merge(a.Collect(ctx, query, kind))
}

// Collect runs the adapters concurrently and returns one SourceResult per
// adapter that supports kind, in adapter order. A blank query returns nil
// without contacting any source.
func (a *Aggregator) Collect(ctx context.Context, query string, kind Kind) []SourceResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	selected := make([]Adapter, 0, len(a.adapters))
	for _, ad := range a.adapters {
		if Supports(ad, kind) {
			selected = append(selected, ad)
		}
	}

	// Each goroutine owns exactly one slot; the merge only starts after Wait.
	results := make([]SourceResult, len(selected))
	var g errgroup.Group
	for i, ad := range selected {
		g.Go(func() error {
			results[i] = a.run(ctx, ad, query, kind)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

type searchOutcome struct {
	records []Record
	err     error
}

// run performs one bounded adapter call. The call is abandoned when its
// deadline passes even if the adapter ignores its context.
func (a *Aggregator) run(ctx context.Context, ad Adapter, query string, kind Kind) SourceResult {
	start := time.Now()
	result := SourceResult{
		Source:   ad.Source(),
		Priority: ad.Priority(),
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan searchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchOutcome{err: fmt.Errorf("%s adapter panicked: %v", ad.Name(), r)}
			}
		}()
		records, err := ad.Search(callCtx, query, kind)
		done <- searchOutcome{records: records, err: err}
	}()

	var outcome searchOutcome
	select {
	case outcome = <-done:
	case <-callCtx.Done():
		outcome = searchOutcome{err: fmt.Errorf("%s: %w", ad.Name(), callCtx.Err())}
	}
	result.Elapsed = time.Since(start)

	if outcome.err != nil {
		result.Err = outcome.err
		slog.Warn("Source search failed",
			"source", ad.Source(),
			"kind", kind,
			"elapsed", result.Elapsed,
			"error", outcome.err,
		)
		return result
	}

	records := make([]Record, 0, len(outcome.records))
	for _, rec := range outcome.records {
		if rec.Source == "" {
			rec.Source = ad.Source()
		}
		rec = Normalize(rec)
		if rec.Title == "" {
			continue
		}
		records = append(records, rec)
	}
	result.Records = records

	slog.Debug("Source search finished",
		"source", ad.Source(),
		"kind", kind,
		"results", len(records),
		"elapsed", result.Elapsed,
	)
	return result
}
