// Package model defines the domain types and value objects for the
// clusterone-push CLI.
//
// This package contains pure data structures with no external dependencies.
// Locations, step results and the run Outcome are transient: they live for a
// single invocation and nothing is written to disk.
//
// The package also defines exit codes (ExitCode), the workflow error taxonomy
// (WorkflowError) and a CLI error type (CLIError) that carries an exit code
// for the OS process.
package model
