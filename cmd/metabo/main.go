// Command metabo is the compound search CLI.
package main

import (
	"os"

	"github.com/turtacn/metabo-search/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Execute reports the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
