package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/kitaplik/internal/book"
	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
)

var (
	openLibraryBaseURL   = "https://openlibrary.org"
	openLibraryCoversURL = "https://covers.openlibrary.org"
)

// OpenLibrary implements book.Adapter for openlibrary.org. Title and author
// queries use the search API; ISBN queries read the edition record directly.
type OpenLibrary struct {
	*transport
}

// Compile-time check that OpenLibrary implements book.Adapter.
var _ book.Adapter = (*OpenLibrary)(nil)

// NewOpenLibrary creates a new Open Library adapter.
func NewOpenLibrary(opts Options) *OpenLibrary {
	return &OpenLibrary{transport: newTransport("OpenLibrary", false, opts)}
}

// Name returns the human-readable name of this adapter.
func (o *OpenLibrary) Name() string {
	return "Open Library"
}

// Source returns book.SourceOpenLibrary.
func (o *OpenLibrary) Source() book.Source {
	return book.SourceOpenLibrary
}

// Priority returns the priority for merging data (lower = higher precedence).
func (o *OpenLibrary) Priority() int {
	return openLibraryPriority
}

// Kinds returns the query kinds Open Library can answer.
func (o *OpenLibrary) Kinds() []book.Kind {
	return []book.Kind{book.KindTitle, book.KindAuthor, book.KindISBN}
}

// Ping tests the connection to Open Library.
func (o *OpenLibrary) Ping(ctx context.Context) error {
	if _, err := o.fetch(ctx, openLibraryBaseURL+"/search.json?q=the+lord+of+the+rings&limit=1"); err != nil {
		return fmt.Errorf("open library ping failed: %w", err)
	}
	return nil
}

// Search runs one Open Library query.
func (o *OpenLibrary) Search(ctx context.Context, query string, kind book.Kind) ([]book.Record, error) {
	switch kind {
	case book.KindTitle, book.KindAuthor:
		return o.search(ctx, string(kind), query)
	case book.KindISBN:
		rec, found, err := o.lookupISBN(ctx, query)
		if err != nil || !found {
			return []book.Record{}, err
		}
		return []book.Record{rec}, nil
	default:
		return nil, fmt.Errorf("open library: %w: %s", book.ErrUnsupportedKind, kind)
	}
}

// openLibrarySearchResponse is the search.json payload.
type openLibrarySearchResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	AuthorName          []string `json:"author_name"`
	ISBN                []string `json:"isbn"`
	FirstPublishYear    int      `json:"first_publish_year"`
	Publisher           []string `json:"publisher"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	CoverID             int      `json:"cover_i"`
	Language            []string `json:"language"`
	Subject             []string `json:"subject"`
}

func (o *OpenLibrary) search(ctx context.Context, field, query string) ([]book.Record, error) {
	params := url.Values{}
	params.Set(field, query)
	params.Set("limit", strconv.Itoa(maxHitsPerSource))

	body, err := o.fetch(ctx, openLibraryBaseURL+"/search.json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result openLibrarySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding open library search: %w", err)
	}

	records := make([]book.Record, 0, len(result.Docs))
	for _, doc := range result.Docs {
		if len(records) == maxHitsPerSource {
			break
		}
		records = append(records, doc.toRecord())
	}

	slog.Debug("Open Library search", "field", field, "query", query, "found", result.NumFound, "results", len(records))
	return records, nil
}

func (d openLibraryDoc) toRecord() book.Record {
	rec := book.Record{
		Title:       d.Title,
		Subtitle:    d.Subtitle,
		Author:      book.JoinList(d.AuthorName, 2),
		PublishYear: book.PositiveInt(d.FirstPublishYear),
		PageCount:   book.PositiveInt(d.NumberOfPagesMedian),
		CoverURL:    coverURLForID(d.CoverID),
		Categories:  book.JoinList(d.Subject, 3),
		Source:      book.SourceOpenLibrary,
	}
	rec.ISBN = book.PickISBN(isbnWithDigits(d.ISBN, 13), isbnWithDigits(d.ISBN, 10))
	if len(d.Publisher) > 0 {
		rec.Publisher = d.Publisher[0]
	}
	if len(d.Language) > 0 {
		rec.Language = d.Language[0]
	}
	return rec
}

// openLibraryEdition is the /isbn/<isbn>.json payload.
type openLibraryEdition struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Publishers    []string `json:"publishers"`
	PublishDate   string   `json:"publish_date"`
	NumberOfPages int      `json:"number_of_pages"`
	Covers        []int    `json:"covers"`
	ISBN13        []string `json:"isbn_13"`
	ISBN10        []string `json:"isbn_10"`
	Authors       []struct {
		Key string `json:"key"`
	} `json:"authors"`
	Languages []struct {
		Key string `json:"key"`
	} `json:"languages"`
	Description json.RawMessage `json:"description"`
}

// lookupISBN reads one edition. A 404 means the ISBN is unknown and is not an
// error.
func (o *OpenLibrary) lookupISBN(ctx context.Context, isbn string) (book.Record, bool, error) {
	isbn = book.NormalizeISBN(isbn)
	if isbn == "" {
		return book.Record{}, false, nil
	}

	body, err := o.fetch(ctx, fmt.Sprintf("%s/isbn/%s.json", openLibraryBaseURL, url.PathEscape(isbn)))
	if err != nil {
		if kerrors.StatusCode(err) == http.StatusNotFound {
			slog.Debug("ISBN not found in Open Library", "isbn", isbn)
			return book.Record{}, false, nil
		}
		return book.Record{}, false, err
	}

	var edition openLibraryEdition
	if err := json.Unmarshal(body, &edition); err != nil {
		return book.Record{}, false, fmt.Errorf("decoding open library edition: %w", err)
	}

	author := ""
	if len(edition.Authors) > 0 && edition.Authors[0].Key != "" {
		author = o.authorName(ctx, edition.Authors[0].Key)
	}

	return edition.toRecord(isbn, author), true, nil
}

func (e openLibraryEdition) toRecord(isbn, author string) book.Record {
	rec := book.Record{
		Title:       e.Title,
		Subtitle:    e.Subtitle,
		Author:      author,
		ISBN:        isbn,
		PublishYear: trailingYear(e.PublishDate),
		PageCount:   book.PositiveInt(e.NumberOfPages),
		Description: editionDescription(e.Description),
		Source:      book.SourceOpenLibrary,
	}
	if len(e.Publishers) > 0 {
		rec.Publisher = e.Publishers[0]
	}
	for _, id := range e.Covers {
		// Open Library uses -1 for removed covers
		if id > 0 {
			rec.CoverURL = coverURLForID(id)
			break
		}
	}
	if len(e.Languages) > 0 {
		rec.Language = e.Languages[0].Key
	}
	return rec
}

// authorName resolves an author key such as "/authors/OL26320A". Any failure
// leaves the author empty.
func (o *OpenLibrary) authorName(ctx context.Context, key string) string {
	ctx, cancel := context.WithTimeout(ctx, o.opts.AuthorTimeout)
	defer cancel()

	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	body, err := o.fetch(ctx, openLibraryBaseURL+key+".json")
	if err != nil {
		slog.Debug("Open Library author lookup failed", "key", key, "error", err)
		return ""
	}

	var author struct {
		Name         string `json:"name"`
		PersonalName string `json:"personal_name"`
	}
	if err := json.Unmarshal(body, &author); err != nil {
		slog.Debug("Open Library author decode failed", "key", key, "error", err)
		return ""
	}
	if author.Name != "" {
		return author.Name
	}
	return author.PersonalName
}

func coverURLForID(id int) string {
	if id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-L.jpg", openLibraryCoversURL, id)
}

// trailingYear takes the year from the last four characters of an Open
// Library publish_date ("March 5, 1998", "1998").
func trailingYear(date string) *int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return nil
	}
	return book.ParseYear(date[len(date)-4:])
}

// editionDescription handles both the plain string and the
// {"type": "/type/text", "value": "..."} forms.
func editionDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return typed.Value
	}
	return ""
}

// isbnWithDigits returns the first entry of a mixed ISBN list that is n
// characters long once hyphens and spaces are removed.
func isbnWithDigits(isbns []string, n int) string {
	for _, isbn := range isbns {
		if isbn = book.NormalizeISBN(isbn); len(isbn) == n {
			return isbn
		}
	}
	return ""
}
