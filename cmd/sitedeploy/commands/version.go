package commands

import (
	"fmt"

	"github.com/climaterisk/sitedeploy/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run(_ *Global, _ *CLI) error {
	fmt.Printf("sitedeploy %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	return nil
}
