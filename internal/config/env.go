package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; every file that exists is loaded.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE pairs from .env files. Variables already present in the
// process environment are never overwritten.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", "path", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", name)
	}
}

// Token returns the publisher credential from the configured environment variable.
func (p PagesConfig) Token() string {
	name := p.TokenEnv
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	return os.Getenv(name)
}
