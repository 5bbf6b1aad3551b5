package book

import "errors"

var (
	// ErrBookNotFound is returned when a lookup by identifier finds nothing.
	ErrBookNotFound = errors.New("book not found")

	// ErrEmptyQuery is returned when a search is attempted with a blank query.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnsupportedKind is returned when an adapter is asked for a query kind
	// it has no search form for.
	ErrUnsupportedKind = errors.New("unsupported query kind")
)
