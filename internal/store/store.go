// Package store persists committed book records.
package store

import "context"

// RecordStore defines the interface for the local record store. Records are
// flat column maps as produced by book.Record.Fields.
type RecordStore interface {
	// InsertRecord stores a new record and returns its id
	InsertRecord(ctx context.Context, fields map[string]any) (int64, error)

	// UpdateRecord replaces the given columns of an existing record
	UpdateRecord(ctx context.Context, id int64, fields map[string]any) error

	// GetRecord returns every column of the record with the given id
	GetRecord(ctx context.Context, id int64) (map[string]any, error)

	// Close closes the connection to the store
	Close() error
}
