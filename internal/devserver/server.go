package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// SnapshotSource yields the latest in-memory build, or nil before the first.
type SnapshotSource interface {
	Snapshot() *build.Snapshot
}

// Server is the development HTTP server.
type Server struct {
	cfg      *config.Config
	source   SnapshotSource
	status   buildStatus
	hub      *LiveReloadHub
	registry *prometheus.Registry
	logger   *slog.Logger
	errors   *foundationerrors.HTTPErrorAdapter
	router   chi.Router
	started  time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithRegistry exposes reg at /metrics when metrics are enabled.
func WithRegistry(reg *prometheus.Registry) Option { return func(s *Server) { s.registry = reg } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New returns a server for cfg. source may be nil to serve only from disk.
func New(cfg *config.Config, source SnapshotSource, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		source:  source,
		hub:     NewLiveReloadHub(),
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.errors = foundationerrors.NewHTTPErrorAdapter(s.logger)
	s.router = s.routes()
	return s
}

// Hub is the live reload hub fed by OnBuildComplete.
func (s *Server) Hub() *LiveReloadHub { return s.hub }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.DevServer.Host, strconv.Itoa(s.cfg.DevServer.Port))
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	if s.cfg.DevServer.Compress {
		r.Use(middleware.Compress(5))
	}

	r.Get("/health", s.handleHealth)
	if s.cfg.DevServer.Metrics {
		r.Handle("/metrics", metrics.Handler(s.registry))
	}
	if s.cfg.DevServer.LiveReloadEnabled() {
		r.Get("/livereload", s.hub.ServeHTTP)
		r.Get("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = io.WriteString(w, LiveReloadScript)
		})
	}
	r.Get("/*", s.handleAsset)
	r.Head("/*", s.handleAsset)
	return r
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("Dev server listening", slog.String("url", "http://"+ln.Addr().String()))

	select {
	case err := <-errCh:
		s.hub.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return foundationerrors.WrapError(err, foundationerrors.CategoryServer, "dev server failed").Build()
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down dev server")
	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("dev server shutdown error", logfields.Error(err))
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryNetwork, "cannot listen").
			WithContext("addr", s.Addr()).
			Build()
	}
	return s.Serve(ctx, ln)
}

type healthResponse struct {
	Status        string `json:"status"`
	BuildID       string `json:"build_id"`
	HasGoodBuild  bool   `json:"has_good_build"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	err, id, good := s.status.get()
	status := "healthy"
	if err != nil {
		status = "build_failed"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:        status,
		BuildID:       id,
		HasGoodBuild:  good,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// handleAsset serves the in-memory snapshot first and content_base second.
// While the last build is failing, page requests get the error page.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	p := s.assetPath(r.URL.Path)
	page := isPage(p)
	buildErr, _, _ := s.status.get()
	if page && buildErr != nil {
		s.renderBuildErrorPage(w, buildErr)
		return
	}

	var snap *build.Snapshot
	if s.source != nil {
		snap = s.source.Snapshot()
	}
	if data, ok := snap.Get(p); ok {
		s.write(w, r, p, snap.Built, data)
		return
	}
	if data, mod, ok := s.readContentBase(p); ok {
		s.write(w, r, p, mod, data)
		return
	}
	if page && snap == nil {
		s.renderBuildPendingPage(w)
		return
	}
	s.errors.WriteErrorResponse(w, r, foundationerrors.NotFoundError("not found").WithContext("path", p).Build())
}

// assetPath maps a URL path to an output-relative path, stripping an
// absolute public path prefix and resolving directories to index.html.
func (s *Server) assetPath(urlPath string) string {
	if pp := s.cfg.Output.PublicPath; strings.HasPrefix(pp, "/") && pp != "/" {
		if trimmed, ok := strings.CutPrefix(urlPath, strings.TrimSuffix(pp, "/")); ok {
			urlPath = trimmed
		}
	}
	p := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if p == "" || strings.HasSuffix(urlPath, "/") {
		return path.Join(p, "index.html")
	}
	return p
}

func isPage(p string) bool {
	ext := path.Ext(p)
	return ext == ".html" || ext == ".htm"
}

func (s *Server) readContentBase(p string) ([]byte, time.Time, bool) {
	dir := http.Dir(s.cfg.ContentBase())
	f, err := dir.Open("/" + p)
	if err != nil {
		return nil, time.Time{}, false
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, false
	}
	if st.IsDir() {
		return s.readContentBase(path.Join(p, "index.html"))
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, time.Time{}, false
	}
	return data, st.ModTime(), true
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, p string, mod time.Time, data []byte) {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	if isPage(p) && s.cfg.DevServer.LiveReloadEnabled() {
		data = InjectLiveReload(data)
	}
	http.ServeContent(w, r, path.Base(p), mod, bytes.NewReader(data))
}
