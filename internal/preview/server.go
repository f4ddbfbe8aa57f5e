package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	prom "github.com/prometheus/client_golang/prometheus"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

// shutdownTimeout bounds how long in-flight requests get after a stop signal.
const shutdownTimeout = 5 * time.Second

// OpenFunc opens url in a browser. Failures are not reported.
type OpenFunc func(url string)

// Server is the preview HTTP server. Its lifecycle is bound, listening, stopped.
type Server struct {
	opts   Options
	logger *slog.Logger
	open   OpenFunc

	ready    chan struct{}
	addr     string
	hub      *LiveReloadHub
	registry *prom.Registry
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOpener replaces the browser opener.
func WithOpener(open OpenFunc) ServerOption {
	return func(s *Server) {
		if open != nil {
			s.open = open
		}
	}
}

// NewServer creates a server for opts. Nothing is bound until Run.
func NewServer(opts Options, options ...ServerOption) *Server {
	s := &Server{
		opts:   opts.withDefaults(),
		logger: slog.Default(),
		open:   launcher.Open,
		ready:  make(chan struct{}),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address. It is empty before Ready is closed.
func (s *Server) Addr() string { return s.addr }

// Run binds the port and serves until ctx is cancelled, then shuts down.
// A clean stop returns nil.
func (s *Server) Run(ctx context.Context) error {
	if info, err := os.Stat(s.opts.Root); err != nil || !info.IsDir() {
		return derrors.ConfigError("site root is not a directory").
			WithContext("path", s.opts.Root).Build()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryServer, "failed to bind preview port").
			WithContext("port", s.opts.Port).Build()
	}
	s.addr = ln.Addr().String()
	port := ln.Addr().(*net.TCPAddr).Port
	close(s.ready)

	var wg sync.WaitGroup
	handler, cleanup, err := s.buildHandler(ctx, &wg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer cleanup()

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- srv.Serve(ln)
	}()

	s.logURLs(port)

	if s.opts.OpenBrowser {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.openBrowser(ctx, fmt.Sprintf("http://localhost:%d", port))
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down preview server")
	case serveErr = <-errCh:
	}

	cancel()
	if s.hub != nil {
		s.hub.Shutdown()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Preview server shutdown error", logfields.Error(err))
	}
	wg.Wait()

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return derrors.WrapError(serveErr, derrors.CategoryServer, "preview server failed").Build()
	}
	s.logger.Info("Preview server stopped")
	return nil
}

// buildHandler assembles the mux. The returned cleanup stops the watcher.
func (s *Server) buildHandler(ctx context.Context, wg *sync.WaitGroup) (http.Handler, func(), error) {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	mux := http.NewServeMux()
	cleanup := func() {}

	if s.opts.Metrics {
		s.registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(s.registry, metrics.ScopePreview)
		mux.Handle(MetricsPath, withCORS(metrics.HTTPHandler(s.registry), metrics.NoopRecorder{}))
	}

	site := NewHandler(s.opts, recorder, s.logger)

	if s.opts.LiveReload {
		s.hub = NewLiveReloadHub(s.logger)
		watcher, err := newSiteWatcher(s.opts.Root, s.hub.Broadcast, s.logger)
		if err != nil {
			return nil, cleanup, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.run(ctx)
		}()
		cleanup = func() { _ = watcher.Close() }
		mux.Handle(LiveReloadPath, withCORS(s.hub, metrics.NoopRecorder{}))
		site = injectLiveReload(site)
	}

	mux.Handle("/", site)
	return mux, cleanup, nil
}

// openBrowser waits for the configured delay and opens url, unless the server
// stops first.
func (s *Server) openBrowser(ctx context.Context, url string) {
	timer := time.NewTimer(s.opts.BrowserDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.logger.Debug("Opening browser", logfields.URL(url))
	s.open(url)
}

func (s *Server) logURLs(port int) {
	base := fmt.Sprintf("http://localhost:%d", port)
	s.logger.Info("Preview server listening",
		logfields.URL(base),
		logfields.Port(port),
		logfields.Path(s.opts.Root),
		slog.Bool("live_reload", s.opts.LiveReload),
		slog.Bool("metrics", s.opts.Metrics))
	for _, page := range s.opts.Pages {
		s.logger.Info("Page available", slog.String("title", page.Title), logfields.URL(base+"/"+strings.TrimPrefix(page.Path, "/")))
	}
	if s.opts.Metrics {
		s.logger.Info("Metrics available", logfields.URL(base+MetricsPath))
	}
}
