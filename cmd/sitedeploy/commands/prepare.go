package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/climaterisk/sitedeploy/internal/config"
	"github.com/climaterisk/sitedeploy/internal/metrics"
	"github.com/climaterisk/sitedeploy/internal/rewrite"
)

// PrepareCmd implements the 'prepare' command.
type PrepareCmd struct {
	Dir  string `arg:"" optional:"" help:"Site directory to rewrite in place (defaults to site.root)."`
	Host string `name:"host" help:"Production host replacing localhost references (defaults to rewrite.production_host)."`

	MetricsFile string `name:"metrics-file" help:"Write rewrite metrics in Prometheus text format to this file."`
}

func (p *PrepareCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	dir := p.Dir
	if dir == "" {
		dir = cfg.Site.Root
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder, flush := runRecorder(p.MetricsFile, metrics.ScopeRewrite)
	report, err := newProcessor(g, cfg, p.Host, recorder).InPlace(ctx, dir)
	if err = g.flushMetrics(flush, err); err != nil {
		return err
	}
	printReport(report)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Upload the contents of %s to the root of %s\n", dir, hostOrDefault(p.Host, cfg))
	fmt.Println("  2. Or publish with GitHub Pages using 'sitedeploy publish'")
	return nil
}

// SubdirectoryCmd implements the 'subdirectory' command.
type SubdirectoryCmd struct {
	Output string `short:"o" name:"output" help:"Output directory (defaults to rewrite.subdirectory_output)."`
	Host   string `name:"host" help:"Production host replacing localhost references (defaults to rewrite.production_host)."`

	MetricsFile string `name:"metrics-file" help:"Write rewrite metrics in Prometheus text format to this file."`
}

func (s *SubdirectoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	out := s.Output
	if out == "" {
		out = cfg.Rewrite.SubdirectoryOutput
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder, flush := runRecorder(s.MetricsFile, metrics.ScopeRewrite)
	report, err := newProcessor(g, cfg, s.Host, recorder).Mirror(ctx, cfg.Site.Root, out)
	if err = g.flushMetrics(flush, err); err != nil {
		return err
	}
	printReport(report)
	fmt.Printf("Upload the contents of %s to %s/climate/\n", out, hostOrDefault(s.Host, cfg))
	return nil
}

func newProcessor(g *Global, cfg *config.Config, host string, recorder metrics.Recorder) *rewrite.Processor {
	rc := cfg.Rewrite
	if host != "" {
		rc.ProductionHost = host
	}
	return rewrite.NewProcessor(rewrite.NewRuleSet(rc),
		rewrite.WithLogger(g.logger()),
		rewrite.WithRecorder(recorder),
		rewrite.WithHTAccessFile(rc.HTAccessFile))
}

func hostOrDefault(host string, cfg *config.Config) string {
	if host != "" {
		return host
	}
	return cfg.Rewrite.ProductionHost
}

func printReport(r *rewrite.Report) {
	fmt.Printf("Processed %d files (%d changed, %d copied, %d failed)\n",
		len(r.Processed), len(r.Changed), len(r.Copied), len(r.Failed))
	for _, fe := range r.Failed {
		fmt.Printf("  failed: %s: %v\n", fe.Path, fe.Err)
	}
	fmt.Printf("Wrote %s\n", r.HTAccess)
}
