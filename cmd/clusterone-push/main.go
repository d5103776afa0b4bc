// Package main is the entry point for the clusterone-push CLI.
//
// The binary validates the project and data directories, updates the
// remote-push helper, pushes both repositories to ClusterOne and creates a
// job. All functionality lives in internal/cli.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development they default to "dev", "none" and "unknown".
package main

import (
	"github.com/shinji-kodama/clusterone-push/internal/cli"
)

// version, commit and date are set at build time via
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
