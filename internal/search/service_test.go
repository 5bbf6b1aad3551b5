package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/fileutil"
	"github.com/lepinkainen/kitaplik/internal/store"
)

type fakeAdapter struct {
	source    book.Source
	priority  int
	kinds     []book.Kind
	records   []book.Record
	err       error
	pingErr   error
	calls     atomic.Int32
	lastQuery atomic.Value
}

var _ book.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Name() string                 { return "fake " + string(f.source) }
func (f *fakeAdapter) Source() book.Source          { return f.source }
func (f *fakeAdapter) Priority() int                { return f.priority }
func (f *fakeAdapter) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeAdapter) Kinds() []book.Kind {
	if f.kinds == nil {
		return []book.Kind{book.KindTitle, book.KindAuthor, book.KindISBN}
	}
	return f.kinds
}

func (f *fakeAdapter) Search(_ context.Context, query string, _ book.Kind) ([]book.Record, error) {
	f.calls.Add(1)
	f.lastQuery.Store(query)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// allFakes returns one fake per source with the production priorities.
func allFakes() map[book.Source]*fakeAdapter {
	return map[book.Source]*fakeAdapter{
		book.SourceGoogle:      {source: book.SourceGoogle, priority: 0},
		book.SourceKitapyurdu:  {source: book.SourceKitapyurdu, priority: 10, kinds: []book.Kind{book.KindTitle}},
		book.SourceBKMKitap:    {source: book.SourceBKMKitap, priority: 20, kinds: []book.Kind{book.KindTitle}},
		book.SourceKitap1000:   {source: book.SourceKitap1000, priority: 30, kinds: []book.Kind{book.KindTitle}},
		book.SourceOpenLibrary: {source: book.SourceOpenLibrary, priority: 40},
	}
}

func adapterList(fakes map[book.Source]*fakeAdapter) []book.Adapter {
	list := make([]book.Adapter, 0, len(fakes))
	for _, src := range book.AllSources {
		if f, ok := fakes[src]; ok {
			list = append(list, f)
		}
	}
	return list
}

func TestSearchISBNWithFailingGoogle(t *testing.T) {
	fakes := allFakes()
	fakes[book.SourceGoogle].err = errors.New("503 Service Unavailable")
	fakes[book.SourceOpenLibrary].records = []book.Record{{
		Title:  "The Count of Monte Cristo",
		Author: "Alexandre Dumas",
		ISBN:   "9780143058142",
	}}

	svc := New(adapterList(fakes), WithTimeout(time.Second))
	results := svc.Search(context.Background(), "978-0-14-305814-2", book.KindISBN)

	require.Len(t, results, 1)
	assert.Equal(t, "The Count of Monte Cristo", results[0].Title)
	assert.Equal(t, book.SourceOpenLibrary, results[0].Source)
	assert.Equal(t, "9780143058142", fakes[book.SourceOpenLibrary].lastQuery.Load())
}

func TestSearchRouting(t *testing.T) {
	tests := []struct {
		kind   book.Kind
		called []book.Source
	}{
		{book.KindTitle, book.AllSources},
		{book.KindAuthor, []book.Source{book.SourceGoogle, book.SourceOpenLibrary}},
		{book.KindISBN, []book.Source{book.SourceGoogle, book.SourceOpenLibrary}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			fakes := allFakes()
			svc := New(adapterList(fakes))
			svc.Search(context.Background(), "9786053609902", tt.kind)

			for src, f := range fakes {
				want := int32(0)
				for _, c := range tt.called {
					if c == src {
						want = 1
					}
				}
				assert.Equal(t, want, f.calls.Load(), "calls to %s", src)
			}
		})
	}
}

func TestSearchBlankQuery(t *testing.T) {
	fakes := allFakes()
	svc := New(adapterList(fakes))

	for _, q := range []string{"", "   ", "\t\n"} {
		results := svc.Search(context.Background(), q, book.KindTitle)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
	assert.Empty(t, svc.Search(context.Background(), "---", book.KindISBN), "ISBN without digits")
	assert.Empty(t, svc.Search(context.Background(), "x", book.Kind("publisher")))

	for src, f := range fakes {
		assert.Zero(t, f.calls.Load(), "%s must not be contacted", src)
	}
}

func TestSearchCapsResults(t *testing.T) {
	fakes := allFakes()
	for i := range 12 {
		fakes[book.SourceGoogle].records = append(fakes[book.SourceGoogle].records,
			book.Record{Title: fmt.Sprintf("Google %d", i)})
		fakes[book.SourceKitapyurdu].records = append(fakes[book.SourceKitapyurdu].records,
			book.Record{Title: fmt.Sprintf("Kitapyurdu %d", i), CoverURL: "https://img.example/k.jpg"})
	}

	svc := New(adapterList(fakes))
	results := svc.Search(context.Background(), "roman", book.KindTitle)
	require.Len(t, results, book.MaxResults)
	for _, r := range results[:12] {
		assert.True(t, r.HasCover(), "covered records sort first")
	}

	limited := New(adapterList(fakes), WithLimit(5)).Search(context.Background(), "roman", book.KindTitle)
	assert.Len(t, limited, 5)

	clamped := New(adapterList(fakes), WithLimit(100)).Search(context.Background(), "roman", book.KindTitle)
	assert.Len(t, clamped, book.MaxResults)
}

func TestSearchMergesAcrossSources(t *testing.T) {
	fakes := allFakes()
	year := 1990
	fakes[book.SourceGoogle].records = []book.Record{{Title: "Kara Kitap", Author: "Orhan Pamuk"}}
	fakes[book.SourceBKMKitap].records = []book.Record{{
		Title:       "KARA KİTAP",
		PublishYear: &year,
		CoverURL:    "http://img.bkmkitap.com/kara.jpg",
	}}

	results := New(adapterList(fakes)).Search(context.Background(), "kara kitap", book.KindTitle)
	require.Len(t, results, 1)
	assert.Equal(t, "Kara Kitap", results[0].Title)
	assert.Equal(t, "Orhan Pamuk", results[0].Author)
	assert.Equal(t, &year, results[0].PublishYear)
	assert.Equal(t, "https://img.bkmkitap.com/kara.jpg", results[0].CoverURL)
	assert.Equal(t, book.SourceBKMKitap, results[0].Source)
}

func TestNewKeepsFirstAdapterPerSource(t *testing.T) {
	first := &fakeAdapter{source: book.SourceGoogle, records: []book.Record{{Title: "first"}}}
	second := &fakeAdapter{source: book.SourceGoogle, records: []book.Record{{Title: "second"}}}

	results := New([]book.Adapter{first, second}).Search(context.Background(), "x", book.KindTitle)
	require.Len(t, results, 1)
	assert.Equal(t, "first", results[0].Title)
	assert.Zero(t, second.calls.Load())
}

func TestLookupISBN(t *testing.T) {
	t.Run("google answers first", func(t *testing.T) {
		fakes := allFakes()
		fakes[book.SourceGoogle].records = []book.Record{{Title: "Masumiyet Müzesi"}}
		fakes[book.SourceOpenLibrary].records = []book.Record{{Title: "The Museum of Innocence"}}

		rec, ok := New(adapterList(fakes)).LookupISBN(context.Background(), "9789750516912")
		require.True(t, ok)
		assert.Equal(t, "Masumiyet Müzesi", rec.Title)
		assert.Equal(t, book.SourceGoogle, rec.Source)
		assert.Zero(t, fakes[book.SourceOpenLibrary].calls.Load())
	})

	t.Run("falls back to open library", func(t *testing.T) {
		fakes := allFakes()
		fakes[book.SourceGoogle].err = errors.New("quota exceeded")
		fakes[book.SourceOpenLibrary].records = []book.Record{{Title: "  The Count of Monte Cristo  "}}

		rec, ok := New(adapterList(fakes)).LookupISBN(context.Background(), "978-0-14-305814-2")
		require.True(t, ok)
		assert.Equal(t, "The Count of Monte Cristo", rec.Title, "records are normalized")
		assert.Equal(t, book.SourceOpenLibrary, rec.Source)
		assert.Equal(t, "9780143058142", fakes[book.SourceGoogle].lastQuery.Load())
	})

	t.Run("not found", func(t *testing.T) {
		fakes := allFakes()
		_, ok := New(adapterList(fakes)).LookupISBN(context.Background(), "9780000000000")
		assert.False(t, ok)
		assert.Zero(t, fakes[book.SourceKitapyurdu].calls.Load())
	})

	t.Run("blank isbn", func(t *testing.T) {
		fakes := allFakes()
		_, ok := New(adapterList(fakes)).LookupISBN(context.Background(), " - ")
		assert.False(t, ok)
		assert.Zero(t, fakes[book.SourceGoogle].calls.Load())
	})
}

func TestFetchCover(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "9786053609902.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("jpeg"), 0o644))

	svc := New(nil, WithCoverFetcher(fileutil.NewCoverFetcher(dir)))

	path, ok := svc.FetchCover(context.Background(), book.Record{
		Title:    "Suç ve Ceza",
		ISBN:     "9786053609902",
		CoverURL: "https://img.kitapyurdu.com/v1/getImage/fn:1/wi:200/wh:true",
	})
	assert.True(t, ok)
	assert.Equal(t, existing, path, "an existing cover named after the ISBN is reused")

	_, ok = svc.FetchCover(context.Background(), book.Record{Title: "Kapaksız"})
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	fakes := allFakes()
	fakes[book.SourceBKMKitap].pingErr = errors.New("blocked")

	status := New(adapterList(fakes), WithTimeout(time.Second)).Health(context.Background())
	require.Len(t, status, len(book.AllSources))
	for src, err := range status {
		if src == book.SourceBKMKitap {
			assert.EqualError(t, err, "blocked")
		} else {
			assert.NoError(t, err, "source %s", src)
		}
	}
}

type memoryStore struct {
	rows   []map[string]any
	err    error
	closed bool
}

var _ store.RecordStore = (*memoryStore)(nil)

func (m *memoryStore) InsertRecord(_ context.Context, fields map[string]any) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.rows = append(m.rows, fields)
	return int64(len(m.rows)), nil
}

func (m *memoryStore) UpdateRecord(_ context.Context, id int64, fields map[string]any) error {
	if id < 1 || int(id) > len(m.rows) {
		return book.ErrBookNotFound
	}
	for k, v := range fields {
		m.rows[id-1][k] = v
	}
	return nil
}

func (m *memoryStore) GetRecord(_ context.Context, id int64) (map[string]any, error) {
	if id < 1 || int(id) > len(m.rows) {
		return nil, book.ErrBookNotFound
	}
	return m.rows[id-1], nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func TestCommit(t *testing.T) {
	svc := New(nil)
	rec := book.Record{Title: "Beyaz Kale", Author: "Orhan Pamuk", Source: book.SourceBKMKitap}

	t.Run("memory store", func(t *testing.T) {
		st := &memoryStore{}
		id, err := svc.Commit(context.Background(), st, rec, "covers/beyaz-kale.jpg")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		assert.Equal(t, "covers/beyaz-kale.jpg", st.rows[0]["cover_path"])
		assert.Equal(t, "bkmkitap", st.rows[0]["source"])

		_, err = svc.Commit(context.Background(), st, rec, "")
		require.NoError(t, err)
		_, hasPath := st.rows[1]["cover_path"]
		assert.False(t, hasPath)
	})

	t.Run("store failure", func(t *testing.T) {
		st := &memoryStore{err: errors.New("disk full")}
		_, err := svc.Commit(context.Background(), st, rec, "")
		assert.ErrorContains(t, err, "disk full")
		assert.ErrorContains(t, err, "Beyaz Kale")
	})

	t.Run("sqlite store", func(t *testing.T) {
		st, err := store.Open(filepath.Join(t.TempDir(), "kitaplik.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		id, err := svc.Commit(context.Background(), st, rec, "covers/beyaz-kale.jpg")
		require.NoError(t, err)

		row, err := st.GetRecord(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Beyaz Kale", row["title"])
		assert.Equal(t, "covers/beyaz-kale.jpg", row["cover_path"])
	})
}
