package book

import (
	"context"
	"slices"
)

// Adapter defines the interface for searching one external book catalog.
// Each implementation handles its own request building, rate limiting, and
// mapping of the catalog's response shape into Record.
type Adapter interface {
	// Name returns the human-readable name of the source (e.g., "Google Books").
	Name() string

	// Source returns the identifier stamped on every record the adapter produces.
	Source() Source

	// Priority returns the merge priority. Lower values are merged first and
	// therefore win field conflicts.
	Priority() int

	// Kinds lists the query kinds the adapter has a search form for.
	Kinds() []Kind

	// Ping tests the connection to the source and returns an error if it
	// cannot be reached for whatever reason.
	Ping(ctx context.Context) error

	// Search runs one query against the source. A source with no matches
	// returns an empty slice and a nil error. Transport and decode failures are
	// returned as errors; callers treat them the same as no matches.
	Search(ctx context.Context, query string, kind Kind) ([]Record, error)
}

// Supports reports whether a handles queries of the given kind.
func Supports(a Adapter, kind Kind) bool {
	return slices.Contains(a.Kinds(), kind)
}
