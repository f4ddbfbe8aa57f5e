package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "sitedeploy.yaml"

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Preview PreviewConfig `yaml:"preview"`
	Rewrite RewriteConfig `yaml:"rewrite"`
	Pages   PagesConfig   `yaml:"pages"`
}

// SiteConfig describes the static site directory shared by every command.
type SiteConfig struct {
	Root         string `yaml:"root"`
	EntryFile    string `yaml:"entry_file"`
	StaticPrefix string `yaml:"static_prefix"`
	// Pages are listed on startup and after publishing so they can be checked by hand.
	Pages []SitePage `yaml:"pages,omitempty"`
}

// SitePage is a named page of the site.
type SitePage struct {
	Title string `yaml:"title"`
	Path  string `yaml:"path"`
}

// PreviewConfig configures the local preview server.
type PreviewConfig struct {
	Port         int           `yaml:"port"`
	OpenBrowser  bool          `yaml:"open_browser"`
	BrowserDelay time.Duration `yaml:"browser_delay"`
	LiveReload   bool          `yaml:"live_reload"`
	Metrics      bool          `yaml:"metrics"`
}

// RewriteConfig configures the asset path rewriter.
type RewriteConfig struct {
	ProductionHost     string   `yaml:"production_host"`
	LocalHosts         []string `yaml:"local_hosts"`
	TextExtensions     []string `yaml:"text_extensions"`
	MarkupExtensions   []string `yaml:"markup_extensions"`
	SubdirectoryOutput string   `yaml:"subdirectory_output"`
	HTAccessFile       string   `yaml:"htaccess_file"`
}

// PagesConfig configures the GitHub Pages publisher.
type PagesConfig struct {
	APIURL    string          `yaml:"api_url"`
	Owner     string          `yaml:"owner"`
	Repo      string          `yaml:"repo"`
	Branch    string          `yaml:"branch"`
	Path      string          `yaml:"path"`
	BuildType string          `yaml:"build_type"`
	Domain    string          `yaml:"domain"`
	TokenEnv  string          `yaml:"token_env"`
	Manifest  []ManifestEntry `yaml:"manifest"`
}

// ManifestEntry maps a local source file to a repository path.
type ManifestEntry struct {
	Source  string `yaml:"source"`
	Path    string `yaml:"path"`
	Message string `yaml:"message"`
}

// FullName returns owner/repo.
func (p PagesConfig) FullName() string {
	return p.Owner + "/" + p.Repo
}

// Load loads configuration from the specified file. A missing file is not an error:
// the built-in defaults are returned instead. Values in the file override defaults
// key by key; ${VAR} references are expanded from the environment first.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Defaults()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		slog.Debug("Configuration file not found, using defaults", "path", configPath)
	case err != nil:
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to unmarshal config").
				WithContext("path", configPath).
				Build()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the commands rely on.
func (c *Config) Validate() error {
	return newConfigurationValidator(c).validate()
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
