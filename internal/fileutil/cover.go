package fileutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/lepinkainen/kitaplik/internal/book"
	"github.com/lepinkainen/kitaplik/internal/httpx"
)

const (
	// DefaultCoverDir is where covers are stored unless configured otherwise.
	DefaultCoverDir = "./assets/covers"
	// DefaultMinCoverBytes rejects placeholder and tracking-pixel responses.
	DefaultMinCoverBytes = 1000
	// DefaultMaxCoverBytes rejects responses that are not plausibly a cover.
	DefaultMaxCoverBytes = 10 << 20
	// DefaultCoverTimeout bounds one cover download.
	DefaultCoverTimeout = 10 * time.Second

	maxIdentifierLen = 50
	coverJPEGQuality = 85
)

var errCoverRejected = errors.New("cover rejected")

// CoverFetcher downloads cover images into a local directory.
type CoverFetcher struct {
	// Dir is the directory covers are written to. Created on demand.
	Dir string
	// Client performs the downloads. Nil means a browser-identity client with
	// DefaultCoverTimeout.
	Client *http.Client
	// MinBytes and MaxBytes bound the accepted response size. Responses of
	// MaxBytes or more are rejected.
	MinBytes int
	MaxBytes int
	// MaxWidth, when positive, downsizes wider images.
	MaxWidth int
	// Overwrite forces a download even if the target file exists.
	Overwrite bool

	defaultClientOnce sync.Once
	defaultClient     *http.Client
}

// NewCoverFetcher returns a CoverFetcher writing to dir with default limits.
func NewCoverFetcher(dir string) *CoverFetcher {
	if dir == "" {
		dir = DefaultCoverDir
	}
	return &CoverFetcher{
		Dir:      dir,
		MinBytes: DefaultMinCoverBytes,
		MaxBytes: DefaultMaxCoverBytes,
	}
}

// Fetch downloads the image at coverURL and stores it as
// <Dir>/<identifier>.jpg, returning the local path. When identifier is empty
// the name is derived from the URL. Any failure yields ok == false; the
// reason is logged at debug level only.
func (f *CoverFetcher) Fetch(ctx context.Context, coverURL, identifier string) (path string, ok bool) {
	coverURL = book.NormalizeCoverURL(coverURL)
	if coverURL == "" {
		return "", false
	}

	path = filepath.Join(f.dir(), CoverFilename(coverURL, identifier))
	if !f.Overwrite && CoverExists(path) {
		slog.Debug("Cover already exists, skipping download", "path", path)
		return path, true
	}

	if err := f.download(ctx, coverURL, path); err != nil {
		slog.Debug("Cover download failed", "url", coverURL, "error", err)
		return "", false
	}

	slog.Info("Downloaded cover", "path", path)
	return path, true
}

func (f *CoverFetcher) download(ctx context.Context, coverURL, path string) error {
	minBytes, maxBytes := f.MinBytes, f.MaxBytes
	if minBytes <= 0 {
		minBytes = DefaultMinCoverBytes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCoverBytes
	}

	body, err := httpx.Get(ctx, f.client(), coverURL, int64(maxBytes-1))
	if err != nil {
		return err
	}
	if len(body) < minBytes {
		return fmt.Errorf("%w: %d bytes is below the %d byte minimum", errCoverRejected, len(body), minBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(body), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: not an image: %w", errCoverRejected, err)
	}
	if f.MaxWidth > 0 && img.Bounds().Dx() > f.MaxWidth {
		img = imaging.Resize(img, f.MaxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cover directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cover-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cover file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(coverJPEGQuality)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cover file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cover file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (f *CoverFetcher) dir() string {
	if f.Dir == "" {
		return DefaultCoverDir
	}
	return f.Dir
}

func (f *CoverFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	f.defaultClientOnce.Do(func() {
		f.defaultClient = httpx.NewBrowserClient(DefaultCoverTimeout, "")
	})
	return f.defaultClient
}

var unsafeIdentifierChars = regexp.MustCompile(`[^\p{L}\p{N}_-]`)

// SanitizeIdentifier makes identifier safe to use as a file name. Anything
// other than a letter, digit, underscore or hyphen becomes an underscore and
// the result is cut to 50 characters.
func SanitizeIdentifier(identifier string) string {
	safe := []rune(unsafeIdentifierChars.ReplaceAllString(strings.TrimSpace(identifier), "_"))
	if len(safe) > maxIdentifierLen {
		safe = safe[:maxIdentifierLen]
	}
	return string(safe)
}

// CoverFilename returns the file name a cover is stored under. Without an
// identifier the first 12 hex characters of the URL's MD5 are used.
func CoverFilename(coverURL, identifier string) string {
	name := SanitizeIdentifier(identifier)
	if name == "" {
		sum := md5.Sum([]byte(coverURL))
		name = hex.EncodeToString(sum[:])[:12]
	}
	return name + ".jpg"
}

// CoverExists reports whether path names an existing local cover file. URLs
// are never considered existing.
func CoverExists(path string) bool {
	if path == "" || strings.Contains(path, "://") {
		return false
	}
	return FileExists(path)
}
