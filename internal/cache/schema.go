package cache

import (
	"fmt"

	"github.com/lepinkainen/kitaplik/internal/book"
)

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency.
// expires_at is a unix timestamp in seconds; each entry carries its own TTL so
// empty responses can expire sooner than real ones.

const searchCacheSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
`

// sourceTables maps every source to the table its search responses live in.
var sourceTables = map[book.Source]string{
	book.SourceGoogle:      "googlebooks_cache",
	book.SourceKitapyurdu:  "kitapyurdu_cache",
	book.SourceBKMKitap:    "bkmkitap_cache",
	book.SourceKitap1000:   "kitap1000_cache",
	book.SourceOpenLibrary: "openlibrary_cache",
}

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = func() []string {
	schemas := make([]string, 0, len(book.AllSources))
	for _, src := range book.AllSources {
		schemas = append(schemas, SchemaFor(sourceTables[src]))
	}
	return schemas
}()

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = func() map[string]bool {
	names := make(map[string]bool, len(sourceTables))
	for _, table := range sourceTables {
		names[table] = true
	}
	return names
}()

// SchemaFor returns the CREATE statements for a search cache table.
func SchemaFor(tableName string) string {
	return fmt.Sprintf(searchCacheSchema, tableName)
}

// TableForSource returns the cache table holding src's responses.
func TableForSource(src book.Source) (string, error) {
	table, ok := sourceTables[src]
	if !ok {
		return "", fmt.Errorf("no cache table for source %q", src)
	}
	return table, nil
}
