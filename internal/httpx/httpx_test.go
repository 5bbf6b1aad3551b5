package httpx

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	kerrors "github.com/lepinkainen/kitaplik/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	t.Cleanup(server.Close)
	return server
}

func TestBrowserClientSendsBrowserIdentity(t *testing.T) {
	var got http.Header
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))

	client := NewBrowserClient(time.Second, "")
	body, err := Get(context.Background(), client, server.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	assert.True(t, strings.HasPrefix(got.Get("User-Agent"), "Mozilla/5.0"))
	assert.Equal(t, BrowserAccept, got.Get("Accept"))
	assert.Equal(t, BrowserAcceptLanguage, got.Get("Accept-Language"))
}

func TestBrowserClientPinnedUserAgent(t *testing.T) {
	var ua string
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))

	_, err := Get(context.Background(), NewBrowserClient(time.Second, " custom-agent/1.0 "), server.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/1.0", ua)
}

func TestTransportKeepsExplicitHeaders(t *testing.T) {
	var got http.Header
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "image/*")

	resp, err := NewBrowserClient(time.Second, "").Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "image/*", got.Get("Accept"))
	assert.Empty(t, req.Header.Get("User-Agent"), "caller request must not be mutated")
}

func TestAPIClientIdentifiesItself(t *testing.T) {
	var got http.Header
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := Get(context.Background(), NewAPIClient(time.Second), server.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, APIUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestGetStatusErrors(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	client := NewAPIClient(time.Second)

	_, err := Get(context.Background(), client, server.URL+"/limited", 0)
	require.Error(t, err)
	assert.True(t, kerrors.IsRateLimitError(err))
	assert.Contains(t, err.Error(), "retry after 30s")

	_, err = Get(context.Background(), client, server.URL+"/missing", 0)
	require.Error(t, err)
	assert.True(t, kerrors.IsHTTPStatusError(err))
	assert.Equal(t, http.StatusNotFound, kerrors.StatusCode(err))

	_, err = Get(context.Background(), client, server.URL+"/down", 0)
	assert.Equal(t, http.StatusServiceUnavailable, kerrors.StatusCode(err))
}

func TestGetBodyLimit(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	client := NewAPIClient(time.Second)

	body, err := Get(context.Background(), client, server.URL, 100)
	require.NoError(t, err)
	assert.Len(t, body, 100)

	_, err = Get(context.Background(), client, server.URL, 99)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestGetHonoursContext(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Get(ctx, NewAPIClient(5*time.Second), server.URL, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientsDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewBrowserClient(0, "").Timeout)
	assert.Equal(t, DefaultTimeout, NewAPIClient(-1).Timeout)

	_, ok := NewBrowserClient(time.Second, "").Transport.(*Transport)
	assert.True(t, ok)
}
