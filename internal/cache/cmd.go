package cache

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/lepinkainen/kitaplik/internal/book"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: google, kitapyurdu, bkmkitap, 1000kitap, openlibrary or all" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	slog.Info("Invalidating cache", "source", i.Source, "database", viper.GetString("cache.dbfile"))

	sources, err := invalidationTargets(i.Source)
	if err != nil {
		return err
	}

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	for _, src := range sources {
		table, err := TableForSource(src)
		if err != nil {
			return err
		}
		rowsDeleted, err := cacheInstance.InvalidateSource(table)
		if err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		slog.Info("Cache invalidated", "source", src, "rows_deleted", rowsDeleted)
	}
	return nil
}

// PruneCacheCmd represents the cache prune subcommand
type PruneCacheCmd struct{}

func (p *PruneCacheCmd) Run() error {
	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	var total int64
	for _, src := range book.AllSources {
		table, err := TableForSource(src)
		if err != nil {
			return err
		}
		rows, err := cacheInstance.ClearExpired(table)
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		total += rows
	}

	slog.Info("Cache pruned", "database", cacheInstance.Path(), "rows_deleted", total)
	return nil
}

func invalidationTargets(name string) ([]book.Source, error) {
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		return book.AllSources, nil
	}
	src, err := book.ParseSource(name)
	if err != nil {
		names := make([]string, 0, len(book.AllSources))
		for _, s := range book.AllSources {
			names = append(names, string(s))
		}
		return nil, fmt.Errorf("invalid cache source '%s'; valid sources are: %s, all", name, strings.Join(names, ", "))
	}
	return []book.Source{src}, nil
}
