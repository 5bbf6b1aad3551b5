package fileutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/kitaplik/internal/testutil"
)

// newIPv4TLSTestServer starts a TLS test server bound to IPv4 loopback. Cover
// URLs are always upgraded to https, so the fetcher never talks plain http.
func newIPv4TLSTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.StartTLS()

	t.Cleanup(server.Close)
	return server
}

// noisePNG encodes a w×h image of random pixels, which does not compress
// below the minimum cover size.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	rnd := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(rnd.Intn(256)), G: uint8(rnd.Intn(256)), B: uint8(rnd.Intn(256)), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func coverServer(t *testing.T, body []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := newIPv4TLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	return server, &hits
}

func testFetcher(t *testing.T, server *httptest.Server) *CoverFetcher {
	t.Helper()

	env := testutil.NewTestEnv(t)
	f := NewCoverFetcher(env.Path("covers"))
	f.Client = server.Client()
	return f
}

func TestCoverFetcherDownloadsImage(t *testing.T) {
	body := noisePNG(t, 64, 96)
	require.Greater(t, len(body), DefaultMinCoverBytes)

	server, hits := coverServer(t, body, http.StatusOK)
	f := testFetcher(t, server)

	path, ok := f.Fetch(context.Background(), server.URL+"/cover.png", "978-0-14-305814-2")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.Dir, "978-0-14-305814-2.jpg"), path)
	assert.Equal(t, int32(1), hits.Load())

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 96, img.Bounds().Dy())

	leftovers, err := filepath.Glob(filepath.Join(f.Dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

// losslessWebP is a 1x1 VP8L image, padded past the minimum cover size with
// bytes after the RIFF container.
func losslessWebP() []byte {
	riff := []byte("RIFF\x1a\x00\x00\x00WEBPVP8L\x0d\x00\x00\x00\x2f\x00\x00\x00\x10\x07\x10\x11\x11\x88\x88\xfe\x07\x00")
	return append(riff, make([]byte, 2048-len(riff))...)
}

func TestCoverFetcherConvertsWebP(t *testing.T) {
	server, _ := coverServer(t, losslessWebP(), http.StatusOK)
	f := testFetcher(t, server)

	path, ok := f.Fetch(context.Background(), server.URL+"/9789750719387.webp", "9789750719387")
	require.True(t, ok, "webp cover should be accepted")
	assert.Equal(t, filepath.Join(f.Dir, "9789750719387.jpg"), path)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
}

func TestCoverFetcherReusesDefaultClient(t *testing.T) {
	f := NewCoverFetcher(t.TempDir())

	first := f.client()
	require.NotNil(t, first)
	assert.Same(t, first, f.client())

	custom := &http.Client{}
	f.Client = custom
	assert.Same(t, custom, f.client())
}

func TestCoverFetcherRejectsSmallResponse(t *testing.T) {
	server, _ := coverServer(t, bytes.Repeat([]byte{0xff}, 400), http.StatusOK)
	f := testFetcher(t, server)

	path, ok := f.Fetch(context.Background(), server.URL+"/pixel.jpg", "small")
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.False(t, FileExists(filepath.Join(f.Dir, "small.jpg")))
}

func TestCoverFetcherRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		status int
		setup  func(f *CoverFetcher)
	}{
		{
			name:   "not found",
			body:   noisePNG(t, 32, 32),
			status: http.StatusNotFound,
		},
		{
			name:   "not an image",
			body:   []byte(strings.Repeat("<html>placeholder</html>", 100)),
			status: http.StatusOK,
		},
		{
			name:   "at the size limit",
			body:   bytes.Repeat([]byte{0x89}, 2000),
			status: http.StatusOK,
			setup:  func(f *CoverFetcher) { f.MaxBytes = 2000 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := coverServer(t, tt.body, tt.status)
			f := testFetcher(t, server)
			if tt.setup != nil {
				tt.setup(f)
			}

			path, ok := f.Fetch(context.Background(), server.URL+"/c.jpg", "x")
			assert.False(t, ok)
			assert.Empty(t, path)
			assert.False(t, FileExists(filepath.Join(f.Dir, "x.jpg")))
		})
	}
}

func TestCoverFetcherRejectsUnusableURLs(t *testing.T) {
	f := NewCoverFetcher(t.TempDir())

	for _, raw := range []string{"", "   ", "ftp://example.com/c.jpg", "/relative/c.jpg", "data:image/gif;base64,AAAA"} {
		path, ok := f.Fetch(context.Background(), raw, "x")
		assert.False(t, ok, raw)
		assert.Empty(t, path, raw)
	}
}

func TestCoverFetcherSkipsExisting(t *testing.T) {
	server, hits := coverServer(t, noisePNG(t, 40, 40), http.StatusOK)
	f := testFetcher(t, server)

	existing := filepath.Join(f.Dir, "9780143058142.jpg")
	require.NoError(t, os.MkdirAll(f.Dir, 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("old image data"), 0o644))

	path, ok := f.Fetch(context.Background(), server.URL+"/c.png", "9780143058142")
	require.True(t, ok)
	assert.Equal(t, existing, path)
	assert.Equal(t, int32(0), hits.Load(), "no request for an existing cover")

	f.Overwrite = true
	path, ok = f.Fetch(context.Background(), server.URL+"/c.png", "9780143058142")
	require.True(t, ok)
	assert.Equal(t, int32(1), hits.Load())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "old image data", string(content))
}

func TestCoverFetcherResizesWideImages(t *testing.T) {
	server, _ := coverServer(t, noisePNG(t, 400, 100), http.StatusOK)
	f := testFetcher(t, server)
	f.MaxWidth = 200

	path, ok := f.Fetch(context.Background(), server.URL+"/wide.png", "wide")
	require.True(t, ok)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestCoverFetcherHashesURLWithoutIdentifier(t *testing.T) {
	server, _ := coverServer(t, noisePNG(t, 32, 48), http.StatusOK)
	f := testFetcher(t, server)

	coverURL := server.URL + "/covers/abc.png"
	path, ok := f.Fetch(context.Background(), coverURL, "")
	require.True(t, ok)

	sum := md5.Sum([]byte(coverURL))
	assert.Equal(t, hex.EncodeToString(sum[:])[:12]+".jpg", filepath.Base(path))
}

func TestSanitizeIdentifier(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "isbn with hyphens", input: "978-0-14-305814-2", expected: "978-0-14-305814-2"},
		{name: "spaces and punctuation", input: "Suç ve Ceza: 1. Cilt", expected: "Suç_ve_Ceza__1__Cilt"},
		{name: "path separators", input: "../../etc/passwd", expected: "______etc_passwd"},
		{name: "trimmed", input: "  9780143058142\n", expected: "9780143058142"},
		{name: "truncated", input: strings.Repeat("a", 60), expected: strings.Repeat("a", 50)},
		{name: "truncated by character", input: strings.Repeat("ş", 60), expected: strings.Repeat("ş", 50)},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeIdentifier(tc.input))
		})
	}
}

func TestCoverFilename(t *testing.T) {
	assert.Equal(t, "9780143058142.jpg", CoverFilename("https://x/c.jpg", "9780143058142"))

	hashed := CoverFilename("https://x/c.jpg", "")
	assert.Len(t, hashed, 12+len(".jpg"))
	assert.Equal(t, hashed, CoverFilename("https://x/c.jpg", "  "), "blank identifier hashes too")
	assert.NotEqual(t, hashed, CoverFilename("https://x/d.jpg", ""))
}

func TestCoverExists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFile("covers/a.jpg", []byte("jpeg"))

	assert.True(t, CoverExists(env.Path("covers", "a.jpg")))
	assert.False(t, CoverExists(env.Path("covers", "b.jpg")))
	assert.False(t, CoverExists(env.Path("covers")))
	assert.False(t, CoverExists("https://img.kitapyurdu.com/a.jpg"))
	assert.False(t, CoverExists(""))
}
