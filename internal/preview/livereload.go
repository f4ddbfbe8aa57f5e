package preview

import (
	"bufio"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 30 * time.Second

// LiveReloadHub fans site change notifications out to SSE clients.
type LiveReloadHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	closed   bool
	revision int
	logger   *slog.Logger
}

type lrClient struct {
	id   int
	ch   chan int
	done chan struct{}
}

// NewLiveReloadHub creates an empty hub.
func NewLiveReloadHub(logger *slog.Logger) *LiveReloadHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveReloadHub{clients: map[int]*lrClient{}, logger: logger}
}

// ServeHTTP implements the SSE endpoint. The first event carries the current
// revision; every later event means the page should reload.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	client := &lrClient{id: h.nextID, ch: make(chan int, 8), done: make(chan struct{})}
	h.nextID++
	h.clients[client.id] = client
	current := h.revision
	h.mu.Unlock()
	defer h.removeClient(client.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n" + event(current)); err != nil {
		h.logger.Debug("livereload write", "error", err)
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		var msg string
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			msg = ": ping\n\n"
		case rev := <-client.ch:
			msg = event(rev)
		}
		if _, err := bw.WriteString(msg); err != nil {
			h.logger.Debug("livereload write", "error", err)
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func event(rev int) string {
	return "data: {\"revision\":" + strconv.Itoa(rev) + "}\n\n"
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast bumps the revision and notifies every client. Clients whose buffer
// is full are dropped; the browser reconnects on its own.
func (h *LiveReloadHub) Broadcast() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.revision++
	rev := h.revision
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- rev:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.logger.Debug("livereload broadcast", "revision", rev, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown disconnects all clients and rejects new ones.
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

// liveReloadScript reloads the page when the revision changes after the first event.
const liveReloadScript = `<script>(() => {
  if (window.__SITEDEPLOY_LR__) return;
  window.__SITEDEPLOY_LR__ = true;
  function connect() {
    const es = new EventSource('` + LiveReloadPath + `');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.revision; return; }
        if (p.revision !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();</script>`
