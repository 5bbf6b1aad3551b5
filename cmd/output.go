package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/config"
	"github.com/lepinkainen/kitaplik/internal/fileutil"
)

// stdout is where command output goes; tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// writeOutput renders records in format to path, or to stdout when path is
// empty. Existing files are only replaced when overwriting is enabled.
func writeOutput(path, format string, records []book.Record) error {
	var buf bytes.Buffer
	if err := renderRecords(&buf, format, records); err != nil {
		return err
	}

	if path == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}

	written, err := fileutil.WriteFileWithOverwrite(path, buf.Bytes(), 0o644, config.OverwriteFiles)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if written {
		slog.Info("Wrote results", "path", path, "records", len(records))
	}
	return nil
}

func renderRecords(w io.Writer, format string, records []book.Record) error {
	if records == nil {
		records = []book.Record{}
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case "table", "":
		return renderTable(w, records)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, records []book.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tTITLE\tAUTHOR\tYEAR\tISBN\tSOURCE\tCOVER")
	for i, r := range records {
		cover := "-"
		if r.HasCover() {
			cover = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			book.Truncate(r.Title, 40),
			orDash(book.Truncate(r.Author, 30)),
			orDash(optionalInt(r.PublishYear)),
			orDash(r.ISBN),
			r.Source,
			cover,
		)
	}
	return tw.Flush()
}

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
