package preview

import (
	"time"

	"github.com/climaterisk/sitedeploy/internal/config"
)

// Reserved endpoints. They shadow files of the same name in the site root.
const (
	LiveReloadPath = "/__livereload"
	MetricsPath    = "/__metrics"
)

// Options configures the preview server.
type Options struct {
	Root         string
	EntryFile    string
	StaticPrefix string
	Port         int
	OpenBrowser  bool
	BrowserDelay time.Duration
	LiveReload   bool
	Metrics      bool
	// Pages are logged as clickable URLs on startup.
	Pages []config.SitePage
}

// OptionsFromConfig maps the site and preview sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:         cfg.Site.Root,
		EntryFile:    cfg.Site.EntryFile,
		StaticPrefix: cfg.Site.StaticPrefix,
		Port:         cfg.Preview.Port,
		OpenBrowser:  cfg.Preview.OpenBrowser,
		BrowserDelay: cfg.Preview.BrowserDelay,
		LiveReload:   cfg.Preview.LiveReload,
		Metrics:      cfg.Preview.Metrics,
		Pages:        cfg.Site.Pages,
	}
}

func (o Options) withDefaults() Options {
	if o.EntryFile == "" {
		o.EntryFile = "index.html"
	}
	if o.Root == "" {
		o.Root = "."
	}
	return o
}
