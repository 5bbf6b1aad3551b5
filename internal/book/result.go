package book

import "time"

// SourceResult represents the outcome of one adapter call within a search.
// A failed call carries Err and no records; the merge step handles it exactly
// like a call that found nothing.
type SourceResult struct {
	// Records are the candidates produced by the source, already normalized.
	Records []Record

	// Source is the identifier of the adapter that produced the result.
	Source Source

	// Priority is the adapter's merge priority.
	Priority int

	// Err is the reason the source contributed nothing, if it failed.
	Err error

	// Elapsed is the wall time spent in the adapter.
	Elapsed time.Duration
}

// OK reports whether the adapter call completed without error.
func (r SourceResult) OK() bool {
	return r.Err == nil
}
