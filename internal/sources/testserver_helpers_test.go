package sources

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newIPv4TestServer starts a test server bound to IPv4 loopback to avoid IPv6 listener issues.
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

// setBaseURL points a package-level base URL at a test server for the
// duration of the test.
func setBaseURL(t *testing.T, target *string, value string) {
	t.Helper()
	original := *target
	*target = value
	t.Cleanup(func() { *target = original })
}

// testOptions disables rate limiting so tests do not wait on the limiter.
func testOptions() Options {
	return Options{
		Timeout:           2 * time.Second,
		RequestsPerSecond: -1,
	}
}
