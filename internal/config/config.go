package config

import (
	"time"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// SourceTimeout bounds one adapter call
	SourceTimeout time.Duration
	// AuthorTimeout bounds the Open Library author name lookup
	AuthorTimeout time.Duration
	// RequestsPerSecond is the per-source request rate; negative disables limiting
	RequestsPerSecond float64
	// UserAgent pins the browser identity used for scraping; empty rotates
	UserAgent string

	// SearchLimit caps the merged result list
	SearchLimit int
	// LangRestrict is the Google Books language restriction; "-" disables it
	LangRestrict string
	// GoogleBooksAPIKey is the optional API key for Google Books
	GoogleBooksAPIKey string

	// CoversDir is where downloaded covers are stored
	CoversDir string
	// CoverMinBytes is the smallest response accepted as a cover
	CoverMinBytes int
	// CoverMaxWidth downsizes wider covers when positive
	CoverMaxWidth int
	// UpdateCovers forces re-downloading covers that already exist
	UpdateCovers bool

	// OverwriteFiles controls whether existing output files should be overwritten
	OverwriteFiles bool

	// CacheEnabled puts the search-response cache in front of every source
	CacheEnabled bool
	// CacheDBFile is the SQLite cache database
	CacheDBFile string
	// CacheTTL is how long a non-empty search response stays cached
	CacheTTL time.Duration

	// StoreDBFile is the SQLite record store
	StoreDBFile string
)

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	viper.SetDefault("sources.timeout", "10s")
	viper.SetDefault("sources.author_timeout", "5s")
	viper.SetDefault("sources.rate", 2.0)
	viper.SetDefault("sources.user_agent", "")

	viper.SetDefault("search.limit", 15)
	viper.SetDefault("search.lang_restrict", "tr")
	viper.SetDefault("googlebooks.api_key", "")

	viper.SetDefault("covers.dir", "./assets/covers")
	viper.SetDefault("covers.min_bytes", 1000)
	viper.SetDefault("covers.max_width", 0)
	viper.SetDefault("covers.update", false)

	viper.SetDefault("OverwriteFiles", false)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "24h")

	viper.SetDefault("store.dbfile", "./kitaplik.db")
}

// InitConfig initializes the global configuration
func InitConfig() {
	SetDefaults()

	SourceTimeout = viper.GetDuration("sources.timeout")
	AuthorTimeout = viper.GetDuration("sources.author_timeout")
	RequestsPerSecond = viper.GetFloat64("sources.rate")
	UserAgent = viper.GetString("sources.user_agent")

	SearchLimit = viper.GetInt("search.limit")
	LangRestrict = viper.GetString("search.lang_restrict")
	GoogleBooksAPIKey = viper.GetString("googlebooks.api_key")

	CoversDir = viper.GetString("covers.dir")
	CoverMinBytes = viper.GetInt("covers.min_bytes")
	CoverMaxWidth = viper.GetInt("covers.max_width")
	UpdateCovers = viper.GetBool("covers.update")

	OverwriteFiles = viper.GetBool("OverwriteFiles")

	CacheEnabled = viper.GetBool("cache.enabled")
	CacheDBFile = viper.GetString("cache.dbfile")
	CacheTTL = viper.GetDuration("cache.ttl")

	StoreDBFile = viper.GetString("store.dbfile")
}
