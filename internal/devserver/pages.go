package devserver

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
)

const liveReloadTag = `<script src="/livereload.js"></script>`

// InjectLiveReload inserts the live reload script before the last </body>,
// or appends it when the page has none.
func InjectLiveReload(page []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, page...), liveReloadTag...)
	}
	out := make([]byte, 0, len(page)+len(liveReloadTag))
	out = append(out, page[:idx]...)
	out = append(out, liveReloadTag...)
	return append(out, page[idx:]...)
}

func (s *Server) liveReloadScript() string {
	if !s.cfg.DevServer.LiveReloadEnabled() {
		return ""
	}
	return liveReloadTag
}

// renderBuildErrorPage answers page requests while the latest build fails.
func (s *Server) renderBuildErrorPage(w http.ResponseWriter, buildErr error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>Build Failed</title><style>body{font-family:sans-serif;max-width:800px;margin:50px auto;padding:20px}h1{color:#d32f2f}pre{background:#f5f5f5;padding:15px;border-radius:4px;overflow-x:auto;white-space:pre-wrap}</style></head><body><h1>Build Failed</h1><p>Fix the error below and save to rebuild automatically.</p><pre>%s</pre>%s</body></html>`,
		html.EscapeString(buildErr.Error()), s.liveReloadScript())
}

// renderBuildPendingPage answers page requests before the first build lands.
func (s *Server) renderBuildPendingPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>Building</title></head><body><h1>Assets are being built</h1><p>This page reloads when the first build completes.</p>%s</body></html>`,
		s.liveReloadScript())
}
