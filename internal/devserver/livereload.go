package devserver

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// LiveReloadHub manages SSE clients for build-change broadcasts.
type LiveReloadHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	closed   bool
	lastHash string
}

type lrClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]*lrClient{}}
}

// Clients returns the number of connected browsers.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	client := &lrClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.lastHash
	h.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	if current != "" {
		if _, err := bw.WriteString(event(current)); err != nil {
			slog.Debug("livereload write", "error", err)
			return
		}
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			}
		case hash := <-client.ch:
			if _, err := bw.WriteString(event(hash)); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload broadcast write", "error", err)
			}
		}
	}
}

func event(hash string) string {
	return "data: {\"hash\":\"" + hash + "\"}\n\n"
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast sends hash to every client. Clients whose buffers are full are
// dropped and reconnect on their own.
func (h *LiveReloadHub) Broadcast(hash string) {
	h.mu.Lock()
	if h.closed || hash == "" || hash == h.lastHash {
		h.mu.Unlock()
		return
	}
	h.lastHash = hash
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()
	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- hash:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", "hash", hash, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

// LiveReloadScript is served at /livereload.js. The first event only records
// the current build; later ones reload the page.
const LiveReloadScript = `(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.hash; return; }
        if (p.hash && p.hash !== current) { console.log('[assetpipe] rebuilt, reloading'); location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
