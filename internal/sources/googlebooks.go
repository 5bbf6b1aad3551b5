package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/lepinkainen/kitaplik/internal/book"
)

var googleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooks implements book.Adapter for the Google Books volumes API.
type GoogleBooks struct {
	*transport
}

// Compile-time check that GoogleBooks implements book.Adapter.
var _ book.Adapter = (*GoogleBooks)(nil)

// NewGoogleBooks creates a new Google Books adapter.
func NewGoogleBooks(opts Options) *GoogleBooks {
	return &GoogleBooks{transport: newTransport("GoogleBooks", false, opts)}
}

// Name returns the human-readable name of this adapter.
func (g *GoogleBooks) Name() string {
	return "Google Books"
}

// Source returns book.SourceGoogle.
func (g *GoogleBooks) Source() book.Source {
	return book.SourceGoogle
}

// Priority returns the priority for merging data (lower = higher precedence).
func (g *GoogleBooks) Priority() int {
	return googleBooksPriority
}

// Kinds returns the query kinds the volumes API can answer.
func (g *GoogleBooks) Kinds() []book.Kind {
	return []book.Kind{book.KindTitle, book.KindAuthor, book.KindISBN}
}

// Ping tests the connection to Google Books API.
func (g *GoogleBooks) Ping(ctx context.Context) error {
	// A known ISBN that should always resolve
	_, err := g.fetch(ctx, g.volumesURL("isbn:0140447938", 1))
	if err != nil {
		return fmt.Errorf("google books ping failed: %w", err)
	}
	return nil
}

// Search queries the volumes endpoint with an intitle:, inauthor: or isbn:
// qualifier depending on kind.
func (g *GoogleBooks) Search(ctx context.Context, query string, kind book.Kind) ([]book.Record, error) {
	var q string
	switch kind {
	case book.KindTitle:
		q = "intitle:" + query
	case book.KindAuthor:
		q = "inauthor:" + query
	case book.KindISBN:
		q = "isbn:" + book.NormalizeISBN(query)
	default:
		return nil, fmt.Errorf("google books: %w: %s", book.ErrUnsupportedKind, kind)
	}

	reqURL := g.volumesURL(q, maxHitsPerSource)
	body, err := g.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result googleBooksResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding google books response: %w", err)
	}

	records := make([]book.Record, 0, len(result.Items))
	for _, item := range result.Items {
		if len(records) == maxHitsPerSource {
			break
		}
		records = append(records, item.VolumeInfo.toRecord())
	}

	slog.Debug("Google Books search", "query", q, "total", result.TotalItems, "results", len(records))
	return records, nil
}

func (g *GoogleBooks) volumesURL(q string, maxResults int) string {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if g.opts.LangRestrict != "" {
		params.Set("langRestrict", g.opts.LangRestrict)
	}
	if g.opts.GoogleBooksAPIKey != "" {
		params.Set("key", g.opts.GoogleBooksAPIKey)
	}
	return googleBooksBaseURL + "/volumes?" + params.Encode()
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolume `json:"volumeInfo"`
	} `json:"items"`
}

type googleVolume struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	Publisher           string   `json:"publisher"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Categories          []string `json:"categories"`
	Language            string   `json:"language"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		Large          string `json:"large"`
		Medium         string `json:"medium"`
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

func (v googleVolume) toRecord() book.Record {
	var isbn13, isbn10 string
	for _, id := range v.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			if isbn13 == "" {
				isbn13 = id.Identifier
			}
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = id.Identifier
			}
		}
	}

	// Prefer the largest image offered
	cover := v.ImageLinks.Large
	for _, candidate := range []string{v.ImageLinks.Medium, v.ImageLinks.Thumbnail, v.ImageLinks.SmallThumbnail} {
		if cover != "" {
			break
		}
		cover = candidate
	}

	return book.Record{
		Title:       v.Title,
		Subtitle:    v.Subtitle,
		Author:      book.JoinList(v.Authors, 2),
		ISBN:        book.PickISBN(isbn13, isbn10),
		PublishYear: book.YearFromDate(v.PublishedDate),
		Publisher:   v.Publisher,
		PageCount:   book.PositiveInt(v.PageCount),
		CoverURL:    cover,
		Description: v.Description,
		Language:    v.Language,
		Categories:  book.JoinList(v.Categories, 3),
		Source:      book.SourceGoogle,
	}
}
