// Package cli implements the cobra-based CLI for clusterone-push.
//
// The root command runs the provisioning workflow. The check, init and
// config subcommands live in their own files. This file defines the root
// command, the global flags and the error-to-exit-code mapping.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command output to JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool

	// noColor disables colored status lines.
	noColor bool

	// configFile is an explicit config file path (--config).
	configFile string

	// envFile is an explicit dotenv file path (--env-file).
	envFile string
)

// Version, Commit and Date are set at build time via ldflags and injected
// from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates the root command. Running it without a subcommand
// executes the workflow.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clusterone-push",
		Short: "Push a project and its data to ClusterOne and create a job",
		Long: `clusterone-push prepares and launches a ClusterOne training job.

It validates PROJECT_DIR and DATA_DIR, updates the git-remote-clusterone
helper, pushes both repositories to the clusterone remote and finally runs
"just create job". The first failing step ends the run with that step's
exit code.

Settings come from .clusterone.yaml (or --config), the environment and
flags, in increasing order of precedence. A .env file in the working
directory is loaded without overriding variables that are already set.

Examples:
  PROJECT_DIR=./model DATA_DIR=~/datasets/mnist clusterone-push
  clusterone-push --project-dir ./model --data-dir ./data --dry-run
  clusterone-push --update-on-failure fail --min-helper-version 0.4.0
  clusterone-push --executor docker --docker-image python:3.12`,

		Args: cobra.NoArgs,

		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				color.NoColor = true
			}
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd.Context(), cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&configFile, "config", "", "Config file (default: .clusterone.{yaml,yml,json,jsonc} in the working directory)")
	pf.StringVar(&envFile, "env-file", "", "Dotenv file to load (default: .env in the working directory, if present)")

	addWorkflowFlags(rootCmd)

	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command with interrupt handling and exits with the
// code derived from the returned error.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(handleError(os.Stdout, os.Stderr, err))
	}
}

// handleError reports err and returns the process exit code.
//
// Workflow failures print their one-line diagnostic to stdout and exit with
// the failing tool's code. CLIErrors carry their own code. Anything else
// exits with ExitGeneralError.
func handleError(stdout, stderr io.Writer, err error) int {
	var wfErr *model.WorkflowError
	if errors.As(err, &wfErr) {
		if jsonOutput {
			printError(stderr, wfErr.Diagnostic(), wfErr.Err)
		} else {
			fmt.Fprintln(stdout, wfErr.Diagnostic())
			if wfErr.Err != nil {
				newLogger(stderr).Debug("workflow failed", "kind", wfErr.Kind, "err", wfErr.Err)
			}
		}
		return wfErr.ProcessExitCode()
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(stderr, cliErr.Message, cliErr.Err)
		return int(cliErr.Code)
	}

	printError(stderr, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError writes an error message to w as text or JSON depending on the
// --json flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]any{
			"message": message,
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(map[string]any{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}
