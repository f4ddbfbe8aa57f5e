package preview

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

// Request outcomes recorded in logs and metrics.
const (
	OutcomeEntry     = "entry"
	OutcomeFile      = "file"
	OutcomeFallback  = "fallback"
	OutcomeNotFound  = "not_found"
	OutcomePreflight = "preflight"
)

// corsHeaders are set on every response, whatever its status.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
	"Cache-Control":                "no-cache",
}

// withCORS sets the fixed CORS and cache headers and answers preflight requests.
// The headers are set again when the status is written, since http.ServeContent
// and http.FileServer drop Cache-Control on error responses.
func withCORS(next http.Handler, recorder metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		if r.Method == http.MethodOptions {
			recorder.IncPreviewRequest(OutcomePreflight)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(&corsWriter{ResponseWriter: w}, r)
	})
}

func setCORSHeaders(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
}

// corsWriter restores the fixed headers right before the status line goes out.
type corsWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *corsWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		setCORSHeaders(w.ResponseWriter.Header())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *corsWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush keeps the live reload event stream working behind the wrapper.
func (w *corsWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *corsWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

type siteHandler struct {
	root         string
	entry        string
	entryPath    string
	staticPrefix string
	files        http.Handler
	recorder     metrics.Recorder
	logger       *slog.Logger
}

// NewHandler returns the site handler with CORS applied. A nil recorder or
// logger falls back to the no-op recorder and the default logger.
func NewHandler(opts Options, recorder metrics.Recorder, logger *slog.Logger) http.Handler {
	opts = opts.withDefaults()
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	entry := path.Clean("/" + filepath.ToSlash(opts.EntryFile))
	prefix := ""
	if opts.StaticPrefix != "" {
		prefix = path.Clean("/" + opts.StaticPrefix)
	}
	h := &siteHandler{
		root:         opts.Root,
		entry:        entry,
		entryPath:    filepath.Join(opts.Root, filepath.FromSlash(entry)),
		staticPrefix: prefix,
		files:        http.FileServer(http.Dir(opts.Root)),
		recorder:     recorder,
		logger:       logger,
	}
	return withCORS(h, recorder)
}

func (h *siteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)

	outcome := h.resolve(clean)
	h.recorder.IncPreviewRequest(outcome)
	h.logger.Debug("Preview request",
		logfields.Method(r.Method),
		logfields.Path(clean),
		logfields.Outcome(outcome),
		logfields.RemoteAddr(r.RemoteAddr))

	switch outcome {
	case OutcomeEntry, OutcomeFallback:
		h.serveEntry(w, r)
	case OutcomeFile:
		h.files.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

// resolve decides how a cleaned request path is answered.
func (h *siteHandler) resolve(clean string) string {
	if clean == "/" || clean == h.entry {
		if h.entryExists() {
			return OutcomeEntry
		}
		return OutcomeNotFound
	}
	if _, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(clean))); err == nil {
		return OutcomeFile
	}
	if h.isStatic(clean) || !h.entryExists() {
		return OutcomeNotFound
	}
	return OutcomeFallback
}

func (h *siteHandler) isStatic(clean string) bool {
	if h.staticPrefix == "" || h.staticPrefix == "/" {
		return false
	}
	return clean == h.staticPrefix || strings.HasPrefix(clean, h.staticPrefix+"/")
}

func (h *siteHandler) entryExists() bool {
	info, err := os.Stat(h.entryPath)
	return err == nil && !info.IsDir()
}

// serveEntry writes the entry file directly. http.FileServer would redirect
// /index.html to / and cannot serve it for arbitrary paths.
func (h *siteHandler) serveEntry(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.entryPath)
	if err != nil {
		h.logger.Warn("Entry file unavailable", logfields.File(h.entryPath), logfields.Error(err))
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "failed to stat entry file", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, filepath.Base(h.entryPath), info.ModTime(), f)
}
