package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Local runs commands as child processes of the CLI via os/exec.
type Local struct {
	stdout io.Writer
	stderr io.Writer
}

// NewLocal creates a Local executor that streams child output to the given
// writers. Nil writers default to os.Stdout and os.Stderr.
func NewLocal(stdout, stderr io.Writer) *Local {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Local{stdout: stdout, stderr: stderr}
}

// Run starts cmd with cmd.Dir as its working directory and waits for it.
//
// A non-zero exit is reported through Result.ExitCode, not as an error.
// When ctx is cancelled the child is killed and the context error is
// returned alongside whatever exit code the kill produced.
func (l *Local) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, errors.New("empty command")
	}

	// #nosec G204 -- commands come from the CLI's own configuration
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = nil
	c.Stdout = l.stdout
	c.Stderr = l.stderr
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}
	if cmd.Stderr != nil {
		c.Stderr = cmd.Stderr
	}

	start := time.Now()
	err := c.Run()
	res := Result{Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s interrupted: %w", cmd.Name, ctxErr)
		}
		if res.ExitCode < 0 {
			// Killed by a signal; there is no exit status to forward.
			return res, fmt.Errorf("%s terminated: %w", cmd.Name, err)
		}
		return res, nil
	}

	return res, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
}
