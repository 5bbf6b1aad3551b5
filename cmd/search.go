package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/config"
	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
	"github.com/lepinkainen/kitaplik/internal/search"
)

// SearchCmd represents the search command
type SearchCmd struct {
	Query         []string `arg:"" help:"Title, author or ISBN to search for"`
	Kind          string   `short:"k" enum:"title,author,isbn" default:"title" help:"How to interpret the query (title, author, isbn)"`
	Limit         int      `short:"n" help:"Maximum number of results (1-15, default search.limit)"`
	Format        string   `short:"f" enum:"table,json,yaml" default:"table" help:"Output format (table, json, yaml)"`
	Output        string   `short:"o" help:"Write output to this file instead of stdout"`
	Pick          bool     `short:"p" help:"Choose a result interactively"`
	DownloadCover bool     `help:"Download the cover of the chosen (or first) result"`
	Save          bool     `help:"Save the chosen (or first) result to the record store"`
}

func (s *SearchCmd) Run(ctx context.Context) error {
	kind, err := book.ParseKind(s.Kind)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(s.Query, " "))
	if query == "" {
		return book.ErrEmptyQuery
	}

	var opts []search.Option
	if s.Limit > 0 {
		opts = append(opts, search.WithLimit(s.Limit))
	}
	svc := newService(opts...)

	results := svc.Search(ctx, query, kind)
	slog.Info("Search finished", "query", query, "kind", kind, "results", len(results))
	if len(results) == 0 || (!s.Pick && !s.DownloadCover && !s.Save) {
		return writeOutput(s.Output, s.Format, results)
	}

	chosen, shown := results[0], results
	if s.Pick {
		if chosen, err = pickRecord(query, results); err != nil {
			return err
		}
		shown = []book.Record{chosen}
	}
	if err := writeOutput(s.Output, s.Format, shown); err != nil {
		return err
	}

	return finishChoice(ctx, svc, chosen, s.DownloadCover, s.Save)
}

// finishChoice downloads the cover of and stores a record picked from a
// result list, as requested.
func finishChoice(ctx context.Context, svc *search.Service, rec book.Record, downloadCover, save bool) error {
	var coverPath string
	if downloadCover {
		path, ok := svc.FetchCover(ctx, rec)
		if ok {
			coverPath = path
		} else {
			slog.Warn("No usable cover", "title", rec.Title, "url", rec.CoverURL)
		}
	}

	if !save {
		return nil
	}

	st, err := openStore(config.StoreDBFile)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	_, err = svc.Commit(ctx, st, rec, coverPath)
	return errors.Join(err, st.Close())
}

// ISBNCmd represents the isbn lookup command
type ISBNCmd struct {
	ISBN          string `arg:"" name:"isbn" help:"ISBN-10 or ISBN-13, hyphens allowed"`
	Format        string `short:"f" enum:"table,json,yaml" default:"table" help:"Output format (table, json, yaml)"`
	DownloadCover bool   `help:"Download the book's cover"`
	Save          bool   `help:"Save the book to the record store"`
}

func (i *ISBNCmd) Run(ctx context.Context) error {
	svc := newService()

	rec, ok := svc.LookupISBN(ctx, i.ISBN)
	if !ok {
		return fmt.Errorf("isbn %s: %w", i.ISBN, book.ErrBookNotFound)
	}
	if err := writeOutput("", i.Format, []book.Record{rec}); err != nil {
		return err
	}
	return finishChoice(ctx, svc, rec, i.DownloadCover, i.Save)
}

// CoverCmd represents the cover download command
type CoverCmd struct {
	URL string `arg:"" name:"url" help:"Cover image URL"`
	ID  string `help:"File name for the cover, without extension (default: hash of the URL)"`
}

func (c *CoverCmd) Run(ctx context.Context) error {
	path, ok := newCoverFetcher().Fetch(ctx, c.URL, c.ID)
	if !ok {
		return errors.New("cover could not be downloaded")
	}
	_, err := fmt.Fprintln(stdout, path)
	return err
}

// HealthCmd represents the source health check command
type HealthCmd struct{}

func (h *HealthCmd) Run(ctx context.Context) error {
	status := newService().Health(ctx)

	failing := 0
	for _, src := range book.AllSources {
		err, known := status[src]
		if !known {
			continue
		}
		if err != nil {
			failing++
		}
		if _, werr := fmt.Fprintf(stdout, "%-12s %s\n", src, healthState(err)); werr != nil {
			return werr
		}
	}

	if failing > 0 {
		return fmt.Errorf("%d of %d sources unreachable", failing, len(status))
	}
	return nil
}

// healthState describes a Ping outcome, telling bot challenges and rate
// limits apart from sources that are simply down.
func healthState(err error) string {
	switch {
	case err == nil:
		return "ok"
	case kerrors.IsBlockedError(err):
		return "blocked: " + err.Error()
	case kerrors.IsRateLimitError(err):
		return "rate limited: " + err.Error()
	case kerrors.IsHTTPStatusError(err):
		return fmt.Sprintf("http %d: %s", kerrors.StatusCode(err), err.Error())
	default:
		return "unreachable: " + err.Error()
	}
}
