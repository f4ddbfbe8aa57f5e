package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/climaterisk/sitedeploy/internal/config"
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/forge"
	"github.com/climaterisk/sitedeploy/internal/metrics"
	"github.com/climaterisk/sitedeploy/internal/publish"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Domain string `name:"domain" help:"Custom domain (defaults to pages.domain)."`
	Branch string `name:"branch" help:"Branch to publish from (defaults to pages.branch)."`

	MetricsFile string `name:"metrics-file" help:"Write publish metrics in Prometheus text format to this file."`
}

// Run exits with status 1 on every failure, including invalid configuration.
func (p *PublishCmd) Run(g *Global, root *CLI) error {
	return publishExitError(p.run(g, root))
}

func (p *PublishCmd) run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	pages := cfg.Pages
	if p.Domain != "" {
		pages.Domain = p.Domain
	}
	if p.Branch != "" {
		pages.Branch = p.Branch
	}

	token, err := publish.RequireToken(pages)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := forge.NewGitHubClient(ctx, pages, token)
	if err != nil {
		return err
	}
	client.WithLogger(g.logger())

	recorder, flush := runRecorder(p.MetricsFile, metrics.ScopePublish)
	fmt.Printf("Publishing %s to GitHub Pages\n", pages.FullName())
	result, err := publish.New(client, pages,
		publish.WithLogger(g.logger()),
		publish.WithRecorder(recorder)).Run(ctx)
	if err = g.flushMetrics(flush, err); err != nil {
		fmt.Println("Publish failed")
		if result != nil {
			for _, f := range result.Failed {
				fmt.Printf("  failed: %s: %v\n", f.Path, f.Err)
			}
		}
		return err
	}
	printNextSteps(result, pages, cfg.Site.Pages)
	return nil
}

func printNextSteps(result *publish.Result, pages config.PagesConfig, sitePages []config.SitePage) {
	fmt.Printf("Uploaded %d files", len(result.Uploaded))
	if len(result.Skipped) > 0 {
		fmt.Printf(", skipped %d missing: %s", len(result.Skipped), strings.Join(result.Skipped, ", "))
	}
	fmt.Println()
	fmt.Printf("GitHub Pages URL: %s\n", result.PagesURL)
	if result.CustomURL == "" {
		return
	}
	fmt.Printf("Custom domain:    %s\n", result.CustomURL)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Add a DNS CNAME record:")
	fmt.Printf("       %s -> %s.github.io\n", pages.Domain, pages.Owner)
	fmt.Println("  2. Wait 5-10 minutes for DNS propagation")
	fmt.Println("  3. The TLS certificate is issued automatically")
	fmt.Println()
	fmt.Println("Test URLs:")
	for _, page := range sitePages {
		fmt.Printf("  %-20s %s/%s\n", page.Title+":", result.CustomURL, strings.TrimPrefix(page.Path, "/"))
	}
}

// publishExitError reclassifies validation failures so the adapter maps them
// to exit status 1 like every other publish failure.
func publishExitError(err error) error {
	if err == nil || !derrors.HasCategory(err, derrors.CategoryValidation) {
		return err
	}
	return derrors.WrapError(err, derrors.CategoryConfig, "invalid publish configuration").Build()
}
