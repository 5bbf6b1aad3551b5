package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/kitaplik/internal/cache"
	"github.com/lepinkainen/kitaplik/internal/config"
	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
)

// CLI represents the complete command structure for the kitaplik application
type CLI struct {
	// Global flags
	Verbose      bool `short:"v" help:"Enable debug logging"`
	Overwrite    bool `help:"Overwrite existing output files"`
	UpdateCovers bool `help:"Re-download cover images even if they already exist"`

	// Cache flags
	CacheDB  string `name:"cache-db" help:"Path to cache SQLite database file (default ./cache.db)"`
	CacheTTL string `help:"Cache time-to-live duration (e.g., 24h)"`
	NoCache  bool   `help:"Query every source directly, bypassing the cache"`

	CoversDir string `help:"Directory downloaded covers are stored in (default ./assets/covers)"`
	StoreDB   string `name:"store-db" help:"Path to the record store SQLite database (default ./kitaplik.db)"`

	Search SearchCmd `cmd:"" help:"Search every source for a book"`
	ISBN   ISBNCmd   `cmd:"" name:"isbn" help:"Look up a single book by ISBN"`
	Cover  CoverCmd  `cmd:"" help:"Download a cover image"`
	Health HealthCmd `cmd:"" help:"Check that every source is reachable"`
	Cache  CacheCmd  `cmd:"" help:"Manage the search-response cache"`
}

// CacheCmd groups the cache maintenance subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Drop cached responses for a source"`
	Prune      cache.PruneCacheCmd      `cmd:"" help:"Remove expired cached responses"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	initConfig()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("kitaplik"),
		kong.Description("Search Turkish and international book catalogs and merge the results."),
		kong.UsageOnError(),
	)

	if cli.Verbose {
		initLogging(true)
	}
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run()
	if err := errors.Join(err, cache.ResetGlobalCache()); err != nil {
		if kerrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err)
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	if err := viper.BindEnv("googlebooks.api_key", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
		slog.Info("Config file not found, writing default config file...")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}

	config.InitConfig()
}

// updateGlobalConfig applies flags given on the command line on top of the
// config file and environment.
func updateGlobalConfig(cli *CLI) {
	if cli.Overwrite {
		viper.Set("OverwriteFiles", true)
	}
	if cli.UpdateCovers {
		viper.Set("covers.update", true)
	}
	if cli.NoCache {
		viper.Set("cache.enabled", false)
	}
	if cli.CacheDB != "" {
		viper.Set("cache.dbfile", cli.CacheDB)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
	if cli.CoversDir != "" {
		viper.Set("covers.dir", cli.CoversDir)
	}
	if cli.StoreDB != "" {
		viper.Set("store.dbfile", cli.StoreDB)
	}

	config.InitConfig()
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Logs go to stderr so command output on stdout stays machine-readable
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
