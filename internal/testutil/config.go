package testutil

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/lepinkainen/kitaplik/internal/config"
)

// ConfigState holds the state of the config package variables that tests
// commonly change.
type ConfigState struct {
	OverwriteFiles    bool
	UpdateCovers      bool
	CacheEnabled      bool
	GoogleBooksAPIKey string
	CoversDir         string
	CacheDBFile       string
	StoreDBFile       string
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		OverwriteFiles:    config.OverwriteFiles,
		UpdateCovers:      config.UpdateCovers,
		CacheEnabled:      config.CacheEnabled,
		GoogleBooksAPIKey: config.GoogleBooksAPIKey,
		CoversDir:         config.CoversDir,
		CacheDBFile:       config.CacheDBFile,
		StoreDBFile:       config.StoreDBFile,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.OverwriteFiles = state.OverwriteFiles
	config.UpdateCovers = state.UpdateCovers
	config.CacheEnabled = state.CacheEnabled
	config.GoogleBooksAPIKey = state.GoogleBooksAPIKey
	config.CoversDir = state.CoversDir
	config.CacheDBFile = state.CacheDBFile
	config.StoreDBFile = state.StoreDBFile
}

// ResetConfig saves the current config state and schedules restoration
// when the test completes. It also resets viper.
func ResetConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// Note: viper doesn't have an Unset function, so we can't
		// restore the "unset" state. This is a known limitation.
	})
}

// SetupTestCache points the cache database at the test environment.
// Returns the database path.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	env.MkdirAll("cache")
	dbPath := env.Path("cache", "test-cache.db")

	SetViperValue(t, "cache.dbfile", dbPath)
	SetViperValue(t, "cache.ttl", "24h")
	config.CacheDBFile = dbPath

	return dbPath
}

// SetupTestStore points the record store at a database in the test
// environment. Returns the database path.
func SetupTestStore(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("kitaplik-test.db")

	SetViperValue(t, "store.dbfile", dbPath)
	config.StoreDBFile = dbPath

	return dbPath
}

// SetupCoversDir points cover downloads at the test environment and returns
// the directory.
func SetupCoversDir(t *testing.T, env *TestEnv) string {
	t.Helper()

	dir := env.Path("covers")

	SetViperValue(t, "covers.dir", dir)
	config.CoversDir = dir

	return dir
}
