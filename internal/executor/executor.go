// Package executor runs the external commands of the provisioning workflow.
//
// Every command carries its own working directory (Command.Dir). The process
// working directory is never changed, so a failure part-way through a run
// cannot leave the CLI sitting in one of the pushed repositories.
//
// Executors distinguish two kinds of failure:
//   - the command ran and exited non-zero: Run returns a Result with that
//     ExitCode and a nil error
//   - the command could not be started or waited for: Run returns an error
//     (wrapping exec.ErrNotFound when the binary does not exist)
package executor

import (
	"context"
	"io"
	"strings"
	"time"
)

// Command is one external invocation.
type Command struct {
	// Name is the program to run, looked up in PATH.
	Name string

	// Args are passed to the program verbatim.
	Args []string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string

	// Stdout and Stderr override the executor's default writers when set.
	// The helper version query uses this to capture output.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line the way a user would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Name}, c.Args...) {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			p = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// FromArgv builds a Command from a program name followed by its arguments.
// An empty argv yields a zero Command.
func FromArgv(argv []string, extra ...string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	args := make([]string, 0, len(argv)-1+len(extra))
	args = append(args, argv[1:]...)
	args = append(args, extra...)
	return Command{Name: argv[0], Args: args}
}

// Result describes a finished command.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Success reports whether the command exited with code 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs a Command to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}
