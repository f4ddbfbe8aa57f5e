package config

import "time"

// Defaults returns the built-in configuration for the climate risk site.
func Defaults() *Config {
	return &Config{
		Site: SiteConfig{
			Root:         "public",
			EntryFile:    "index.html",
			StaticPrefix: "/static",
			Pages: []SitePage{
				{Title: "Main", Path: "/"},
				{Title: "Hurricane Risk Map", Path: "/hurricane-risk-map.html"},
				{Title: "Hurricane Season", Path: "/hurricane-season-2026.html"},
				{Title: "Climate Scenarios", Path: "/climate-scenarios.html"},
				{Title: "Enhanced Analysis", Path: "/real-estate-risk.html"},
				{Title: "Use Case Tests", Path: "/climate-use-case-tests.md"},
			},
		},
		Preview: PreviewConfig{
			Port:         8080,
			OpenBrowser:  true,
			BrowserDelay: time.Second,
		},
		Rewrite: RewriteConfig{
			ProductionHost:     "johnnycchung.com",
			LocalHosts:         []string{"localhost:8080", "localhost:3000", "localhost:8000"},
			TextExtensions:     []string{".html", ".htm", ".css", ".js", ".json", ".md", ".txt", ".xml", ".svg"},
			MarkupExtensions:   []string{".html", ".htm"},
			SubdirectoryOutput: "climate_subdirectory",
			HTAccessFile:       ".htaccess",
		},
		Pages: PagesConfig{
			APIURL:    "https://api.github.com",
			Owner:     "jiahknee5",
			Repo:      "climate-risk-analysis",
			Branch:    "main",
			Path:      "/",
			BuildType: "legacy",
			Domain:    "climate.johnnycchung.com",
			TokenEnv:  "GITHUB_TOKEN",
			Manifest: []ManifestEntry{
				{Source: "public/index.html", Path: "index.html", Message: "Update index.html for GitHub Pages"},
				{Source: "public/hurricane-risk-map.html", Path: "hurricane-risk-map.html", Message: "Add hurricane risk map for GitHub Pages"},
				{Source: "public/hurricane-season-2026.html", Path: "hurricane-season-2026.html", Message: "Add hurricane season simulation for GitHub Pages"},
				{Source: "public/climate-scenarios.html", Path: "climate-scenarios.html", Message: "Add climate scenarios comparison for GitHub Pages"},
				{Source: "public/real-estate-risk.html", Path: "real-estate-risk.html", Message: "Add enhanced climate risk analysis for GitHub Pages"},
				{Source: "public/climate-use-case-tests.md", Path: "climate-use-case-tests.md", Message: "Add use case tests documentation for GitHub Pages"},
			},
		},
	}
}
