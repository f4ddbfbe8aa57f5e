package commands

import (
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/climaterisk/sitedeploy/internal/config"
	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitedeploy.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Local        LocalCmd        `cmd:"" default:"withargs" help:"Serve the site locally with SPA fallback (default command)"`
	Prepare      PrepareCmd      `cmd:"" help:"Rewrite site paths in place for the production host"`
	Subdirectory SubdirectoryCmd `cmd:"" help:"Write a rewritten copy of the site for hosting below /climate/"`
	Publish      PublishCmd      `cmd:"" help:"Upload the site to GitHub and configure GitHub Pages"`
	Init         InitCmd         `cmd:"" help:"Write a configuration file with the built-in defaults"`
	Version      VersionCmd      `cmd:"" help:"Show version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.Config)
}

// logger returns the logger installed by AfterApply unless one was injected.
func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// runRecorder returns a recorder for a one-shot command. With an empty path it
// is the no-op recorder; otherwise flush writes the gathered metrics to path.
func runRecorder(path string, scope metrics.Scope) (recorder metrics.Recorder, flush func() error) {
	if path == "" {
		return metrics.NoopRecorder{}, func() error { return nil }
	}
	reg := prom.NewRegistry()
	return metrics.NewPrometheusRecorder(reg, scope), func() error {
		return metrics.WriteTextfile(path, reg)
	}
}

// flushMetrics writes the metrics file after a run. A run error takes
// precedence; a flush failure is only logged in that case.
func (g *Global) flushMetrics(flush func() error, runErr error) error {
	err := flush()
	if err == nil {
		return runErr
	}
	if runErr != nil {
		g.logger().Warn("Failed to write metrics file", logfields.Error(err))
		return runErr
	}
	return err
}
