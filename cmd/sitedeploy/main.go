package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/climaterisk/sitedeploy/cmd/sitedeploy/commands"
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("sitedeploy"),
		kong.Description("Prepare, preview and publish the climate risk analysis site."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli); err != nil {
		os.Exit(derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err))
	}
}
