package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/kitaplik/internal/book"
)

// BooksSchema defines the table committed records are stored in
const BooksSchema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	subtitle TEXT,
	author TEXT,
	isbn TEXT,
	publisher TEXT,
	publish_year INTEGER,
	page_count INTEGER,
	description TEXT,
	categories TEXT,
	language TEXT,
	cover_url TEXT,
	cover_path TEXT,
	source TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_books_isbn ON books(isbn);
`

// writableColumns is the whitelist of columns callers may set. Column names
// are interpolated into SQL, so nothing outside this set is accepted.
var writableColumns = map[string]bool{
	"title":        true,
	"subtitle":     true,
	"author":       true,
	"isbn":         true,
	"publisher":    true,
	"publish_year": true,
	"page_count":   true,
	"description":  true,
	"categories":   true,
	"language":     true,
	"cover_url":    true,
	"cover_path":   true,
	"source":       true,
}

// SQLiteStore implements RecordStore on a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Compile-time check that SQLiteStore implements RecordStore.
var _ RecordStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// Open creates a store at dbPath, connects and makes sure the schema exists.
func Open(dbPath string) (*SQLiteStore, error) {
	s := NewSQLiteStore(dbPath)
	if err := s.Connect(); err != nil {
		return nil, err
	}
	if err := s.CreateTable(BooksSchema); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// Connect opens a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return errors.Join(fmt.Errorf("failed to connect to database: %w", err), db.Close())
	}
	s.db = db
	return nil
}

// CreateTable creates a new table with the given schema if it doesn't exist
func (s *SQLiteStore) CreateTable(schema string) error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertRecord inserts one record and returns its id
func (s *SQLiteStore) InsertRecord(ctx context.Context, fields map[string]any) (int64, error) {
	columns, err := sortedColumns(fields)
	if err != nil {
		return 0, err
	}
	if title, _ := fields["title"].(string); strings.TrimSpace(title) == "" {
		return 0, errors.New("record has no title")
	}

	placeholders := make([]string, len(columns))
	values := make([]any, len(columns))
	for i, col := range columns {
		placeholders[i] = "?"
		values[i] = fields[col]
	}
	query := fmt.Sprintf(
		"INSERT INTO books (%s) VALUES (%s)",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

// UpdateRecord sets the given columns on record id and bumps updated_at
func (s *SQLiteStore) UpdateRecord(ctx context.Context, id int64, fields map[string]any) error {
	columns, err := sortedColumns(fields)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(columns)+1)
	values := make([]any, 0, len(columns)+1)
	for _, col := range columns {
		assignments = append(assignments, col+" = ?")
		values = append(values, fields[col])
	}
	assignments = append(assignments, "updated_at = CURRENT_TIMESTAMP")
	values = append(values, id)

	query := fmt.Sprintf("UPDATE books SET %s WHERE id = ?", strings.Join(assignments, ", "))
	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record %d: %w", id, book.ErrBookNotFound)
	}
	return nil
}

// GetRecord returns all columns of record id
func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM books WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query record %d: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", id, err)
		}
		return nil, fmt.Errorf("record %d: %w", id, book.ErrBookNotFound)
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("failed to scan record %d: %w", id, err)
	}

	record := make(map[string]any, len(columns))
	for i, col := range columns {
		record[col] = values[i]
	}
	return record, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// sortedColumns validates the keys of fields and returns them in a stable
// order.
func sortedColumns(fields map[string]any) ([]string, error) {
	columns := slices.Sorted(maps.Keys(fields))
	for _, col := range columns {
		if !writableColumns[col] {
			return nil, fmt.Errorf("unknown column %q", col)
		}
	}
	return columns, nil
}
