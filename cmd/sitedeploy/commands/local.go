package commands

import (
	"context"
	"os/signal"
	"syscall"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/preview"
)

// LocalCmd implements the 'local' command.
type LocalCmd struct {
	Port       int    `arg:"" optional:"" help:"Port to listen on (defaults to preview.port)."`
	Root       string `name:"root" help:"Directory to serve (defaults to site.root)."`
	NoOpen     bool   `name:"no-open" help:"Do not open a browser."`
	LiveReload bool   `name:"live-reload" help:"Reload open pages when files under the root change."`
	Metrics    bool   `name:"metrics" help:"Expose Prometheus metrics at /__metrics."`
}

func (l *LocalCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	opts := l.options(preview.OptionsFromConfig(cfg))
	if opts.Port < 0 || opts.Port > 65535 {
		return derrors.ValidationError("port out of range").WithContext("port", opts.Port).Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return preview.NewServer(opts, preview.WithServerLogger(g.logger())).Run(ctx)
}

// options applies command line overrides to the configured options.
func (l *LocalCmd) options(opts preview.Options) preview.Options {
	if l.Port != 0 {
		opts.Port = l.Port
	}
	if l.Root != "" {
		opts.Root = l.Root
	}
	if l.NoOpen {
		opts.OpenBrowser = false
	}
	opts.LiveReload = opts.LiveReload || l.LiveReload
	opts.Metrics = opts.Metrics || l.Metrics
	return opts
}
