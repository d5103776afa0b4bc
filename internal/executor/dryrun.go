package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// DryRun prints each command instead of running it and reports success.
type DryRun struct {
	out io.Writer

	mu      sync.Mutex
	planned []Command
}

// NewDryRun creates a DryRun executor that writes the plan to out.
func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{out: out}
}

// Run records cmd, prints it and returns a successful Result.
func (d *DryRun) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	d.mu.Lock()
	d.planned = append(d.planned, cmd)
	d.mu.Unlock()

	dir := cmd.Dir
	if dir == "" {
		dir = "."
	}
	fmt.Fprintf(d.out, "[dry-run] (%s) %s\n", dir, cmd)
	return Result{}, nil
}

// Planned returns the commands seen so far, in order.
func (d *DryRun) Planned() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, len(d.planned))
	copy(out, d.planned)
	return out
}
