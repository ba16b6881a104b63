package devserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readUntil(t *testing.T, r *bufio.Reader, needle string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.Contains(line, needle) {
			return
		}
	}
	t.Fatalf("did not read %q", needle)
}

func connect(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return bufio.NewReader(resp.Body)
}

func TestLiveReloadInitialEventCarriesCurrentHash(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()
	hub.Broadcast("abc123")

	srv := httptest.NewServer(hub)
	defer srv.Close()

	readUntil(t, connect(t, srv.URL), "abc123")
}

func TestLiveReloadBroadcastDeduplicates(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	r := connect(t, srv.URL)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("one")
	hub.Broadcast("one")
	hub.Broadcast("two")
	readUntil(t, r, `"hash":"one"`)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\n", line)
	readUntil(t, r, `"hash":"two"`)
}

func TestLiveReloadShutdownRejectsClients(t *testing.T) {
	hub := NewLiveReloadHub()
	hub.Shutdown()
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	hub.Shutdown()
}

func TestInjectLiveReload(t *testing.T) {
	require.Equal(t, `<BODY>x<script src="/livereload.js"></script></BODY>`, string(InjectLiveReload([]byte("<BODY>x</BODY>"))))
	require.Equal(t, `<p>x</p><script src="/livereload.js"></script>`, string(InjectLiveReload([]byte("<p>x</p>"))))
}
