package commands

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// gateObserver holds the first build at its first stage until released.
type gateObserver struct {
	build.NoopObserver
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gateObserver) OnStageStart(build.StageName) {
	g.once.Do(func() { close(g.started) })
	<-g.release
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func fetch(url string) (int, string) {
	resp, err := http.Get(url) //nolint:gosec // test server on loopback
	if err != nil {
		return 0, ""
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServerAnswersBeforeInitialBuildCompletes(t *testing.T) {
	root, g, _ := newTestProject(t)
	opts, err := loadOptions(root, config.ModeServer)
	require.NoError(t, err)
	opts.Config.DevServer.Host = "127.0.0.1"
	opts.Config.DevServer.Port = freePort(t)
	base := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.Config.DevServer.Port))

	gate := &gateObserver{started: make(chan struct{}), release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watchAndServe(ctx, g, opts, build.WithObserver(gate)) }()

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial build never started")
	}
	require.Eventually(t, func() bool {
		code, body := fetch(base + "/")
		return code == http.StatusServiceUnavailable && len(body) > 0
	}, 5*time.Second, 20*time.Millisecond)
	_, body := fetch(base + "/")
	require.Contains(t, body, "Assets are being built")

	close(gate.release)
	require.Eventually(t, func() bool {
		code, body := fetch(base + "/js/app.bundle.js")
		return code == http.StatusOK && len(body) > 0
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("lifecycle did not stop")
	}
}
