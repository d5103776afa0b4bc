package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/fatih/color"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// Status line colors: green for success, bright magenta for warnings, red
// for failures and cyan for progress.
var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgHiMagenta)
	failColor = color.New(color.FgRed)
	stepColor = color.New(color.FgCyan)
)

// statusReporter prints one line per step event. It satisfies
// workflow.Reporter.
type statusReporter struct {
	w io.Writer
}

func newStatusReporter(w io.Writer) *statusReporter {
	return &statusReporter{w: w}
}

func (r *statusReporter) StepStarted(step model.StepName, cmd executor.Command) {
	steps := model.Steps()
	stepColor.Fprintf(r.w, "==> [%d/%d] %s: %s\n", slices.Index(steps, step)+1, len(steps), step, cmd)
	if cmd.Dir != "" {
		fmt.Fprintf(r.w, "    in %s\n", cmd.Dir)
	}
}

func (r *statusReporter) StepFinished(res model.StepResult) {
	switch res.Status {
	case model.StepOK:
		okColor.Fprintf(r.w, "✔ %s (%s)\n", res.Step, formatDuration(res.Duration))
	case model.StepSkipped:
		fmt.Fprintf(r.w, "- %s skipped\n", res.Step)
	case model.StepWarned:
		warnColor.Fprintf(r.w, "! %s exited with code %d\n", res.Step, res.ExitCode)
	case model.StepFailed:
		failColor.Fprintf(r.w, "✘ %s exited with code %d\n", res.Step, res.ExitCode)
	}
}

func (r *statusReporter) Warn(step model.StepName, message string) {
	warnColor.Fprintf(r.w, "warning: %s: %s\n", step, message)
}

// printDryRunSummary prints the closing line of a dry run.
func printDryRunSummary(w io.Writer, planned []executor.Command) {
	okColor.Fprintf(w, "Dry run: %d commands planned, nothing was run\n", len(planned))
}

// printSummary prints the closing line of a successful run.
func printSummary(w io.Writer, outcome *model.Outcome) {
	var total time.Duration
	for _, s := range outcome.Steps {
		total += s.Duration
	}
	okColor.Fprintf(w, "Job created for %s (run %s, %s)\n",
		outcome.Project.Path, outcome.RunID, formatDuration(total))
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to marshal JSON output", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
