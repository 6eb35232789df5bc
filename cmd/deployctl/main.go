package main

import (
	"os"

	"github.com/withObsrvr/stack-deploy-workflow/internal/cli/cmd"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
