// Package workflow implements the provisioning run: validate the project and
// data locations, update the remote-push helper, push both repositories to
// the ClusterOne remote and create a job.
//
// Steps run strictly in sequence and the first failure ends the run. The
// runner takes all of its inputs explicitly (Inputs, Options) and never reads
// the process environment or changes the working directory.
package workflow

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/git"
	"github.com/shinji-kodama/clusterone-push/internal/helper"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// Label keys attached to every command through executor.WithLabels.
const (
	LabelRunID = "clusterone.run-id"
	LabelStep  = "clusterone.step"
)

// Defaults applied by NewRunner to empty Options fields.
const (
	DefaultRemote = "clusterone"
	DefaultBranch = "master"
)

// DefaultJobCommand is the platform CLI invocation that creates a job.
var DefaultJobCommand = []string{"just", "create", "job"}

// Inputs are the two location values, as given by the caller.
type Inputs struct {
	ProjectDir string
	DataDir    string
}

// Options tune the workflow. Zero values select the defaults.
type Options struct {
	Remote string
	Branch string

	// UpdateCommand is the self-update command line; empty uses pip.
	UpdateCommand []string
	// HelperPackage is the helper's package name for version queries.
	HelperPackage string
	SkipUpdate    bool
	UpdatePolicy  model.UpdatePolicy
	// MinHelperVersion, when set, must be satisfied after the update.
	MinHelperVersion string

	JobCommand []string
	JobArgs    []string

	// StepTimeout bounds each external command; zero means no limit.
	StepTimeout time.Duration
}

// Reporter receives progress as the run advances.
type Reporter interface {
	StepStarted(step model.StepName, cmd executor.Command)
	StepFinished(result model.StepResult)
	Warn(step model.StepName, message string)
}

type nopReporter struct{}

func (nopReporter) StepStarted(model.StepName, executor.Command) {}
func (nopReporter) StepFinished(model.StepResult)                {}
func (nopReporter) Warn(model.StepName, string)                  {}

// Runner executes the provisioning workflow.
type Runner struct {
	exec     executor.Executor
	git      *git.Manager
	upgrader helper.Upgrader
	upgCmd   executor.Command
	versions helper.VersionProvider
	opts     Options
	logger   *log.Logger
	reporter Reporter
	newRunID func() string
}

// RunnerOption configures a Runner during construction.
type RunnerOption func(*Runner)

// WithLogger sets the debug logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithReporter sets the progress reporter.
func WithReporter(rep Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = rep
	}
}

// WithUpgrader replaces the pip-based helper upgrader. cmd is only used for
// reporting.
func WithUpgrader(u helper.Upgrader, cmd executor.Command) RunnerOption {
	return func(r *Runner) {
		r.upgrader = u
		r.upgCmd = cmd
	}
}

// WithVersionProvider replaces the pip-based helper version query. A nil
// provider disables the minimum-version check.
func WithVersionProvider(v helper.VersionProvider) RunnerOption {
	return func(r *Runner) {
		r.versions = v
	}
}

// WithRunID overrides run identifier generation.
func WithRunID(fn func() string) RunnerOption {
	return func(r *Runner) {
		r.newRunID = fn
	}
}

// NewRunner creates a Runner that runs every external command through ex.
func NewRunner(ex executor.Executor, opts Options, options ...RunnerOption) *Runner {
	if opts.Remote == "" {
		opts.Remote = DefaultRemote
	}
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	if opts.UpdatePolicy == "" {
		opts.UpdatePolicy = model.UpdateWarn
	}
	if len(opts.JobCommand) == 0 {
		opts.JobCommand = DefaultJobCommand
	}

	pip := helper.NewPip(ex, opts.UpdateCommand, opts.HelperPackage)
	r := &Runner{
		exec:     ex,
		git:      git.NewManager(ex),
		upgrader: pip,
		upgCmd:   pip.UpgradeCommand(),
		versions: pip,
		opts:     opts,
		logger:   log.New(io.Discard),
		reporter: nopReporter{},
		newRunID: func() string { return ulid.Make().String() },
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run validates in and executes the workflow steps in order.
//
// The returned Outcome is never nil; it holds the resolved locations (once
// validation passed) and a result for every step that was reached. The error
// is a *model.WorkflowError describing the first failure.
func (r *Runner) Run(ctx context.Context, in Inputs) (*model.Outcome, error) {
	outcome := &model.Outcome{RunID: r.newRunID()}
	logger := r.logger.With("run_id", outcome.RunID)

	project, data, err := ResolveInputs(in)
	if err != nil {
		logger.Debug("input validation failed", "err", err)
		return outcome, err
	}
	outcome.Project, outcome.Data = project, data
	logger.Debug("resolved locations", "project", project.Path, "data", data.Path)

	ctx = executor.WithLabels(ctx, map[string]string{LabelRunID: outcome.RunID})

	if err := r.update(ctx, logger, outcome); err != nil {
		return outcome, err
	}

	for _, loc := range []struct {
		target model.Target
		path   string
	}{
		{model.TargetProject, project.Path},
		{model.TargetData, data.Path},
	} {
		if err := r.push(ctx, logger, outcome, loc.target, loc.path); err != nil {
			return outcome, err
		}
	}

	if err := r.createJob(ctx, logger, outcome); err != nil {
		return outcome, err
	}

	logger.Debug("workflow finished")
	return outcome, nil
}

// update upgrades the helper and enforces the minimum version.
func (r *Runner) update(ctx context.Context, logger *log.Logger, outcome *model.Outcome) error {
	if r.opts.SkipUpdate {
		res := model.StepResult{Step: model.StepUpdate, Status: model.StepSkipped}
		outcome.Steps = append(outcome.Steps, res)
		r.reporter.StepFinished(res)
	} else {
		res, runErr := r.runStep(ctx, logger, model.StepUpdate, r.upgCmd, r.upgrader.Upgrade)
		if res.Status == model.StepFailed && r.opts.UpdatePolicy == model.UpdateWarn {
			res.Status = model.StepWarned
			logger.Debug("helper self-update failed; continuing", "exit_code", res.ExitCode, "err", runErr)
			r.reporter.Warn(model.StepUpdate, "self-update failed, continuing with the installed helper")
		}
		outcome.Steps = append(outcome.Steps, res)
		r.reporter.StepFinished(res)
		if res.Status == model.StepFailed {
			return model.UpdateFailed(res.ExitCode, runErr)
		}
	}

	if r.opts.MinHelperVersion == "" {
		return nil
	}
	if r.versions == nil {
		logger.Debug("minimum helper version check disabled")
		return nil
	}

	installed, err := r.versions.InstalledVersion(ctx)
	if err != nil {
		return model.HelperOutdated("", r.opts.MinHelperVersion, err)
	}
	ok, err := helper.AtLeast(installed, r.opts.MinHelperVersion)
	if err != nil {
		return model.HelperOutdated(installed, r.opts.MinHelperVersion, err)
	}
	if !ok {
		return model.HelperOutdated(installed, r.opts.MinHelperVersion, nil)
	}
	logger.Debug("helper version satisfied", "installed", installed, "minimum", r.opts.MinHelperVersion)
	return nil
}

// push pushes one repository and records the step.
func (r *Runner) push(ctx context.Context, logger *log.Logger, outcome *model.Outcome, target model.Target, path string) error {
	step := model.PushStep(target)
	cmd := git.PushCommand(path, r.opts.Remote, r.opts.Branch)

	res, err := r.runStep(ctx, logger, step, cmd, func(ctx context.Context) (executor.Result, error) {
		return r.git.Push(ctx, path, r.opts.Remote, r.opts.Branch)
	})
	outcome.Steps = append(outcome.Steps, res)
	r.reporter.StepFinished(res)
	if res.Status == model.StepFailed {
		return model.PushFailed(target, res.ExitCode, err)
	}
	return nil
}

// createJob invokes the platform job-creation command from the caller's
// working directory.
func (r *Runner) createJob(ctx context.Context, logger *log.Logger, outcome *model.Outcome) error {
	cmd := executor.FromArgv(r.opts.JobCommand, r.opts.JobArgs...)

	res, err := r.runStep(ctx, logger, model.StepCreateJob, cmd, func(ctx context.Context) (executor.Result, error) {
		return r.exec.Run(ctx, cmd)
	})
	outcome.Steps = append(outcome.Steps, res)
	r.reporter.StepFinished(res)
	if res.Status == model.StepFailed {
		return model.JobCreationFailed(res.ExitCode, err)
	}
	return nil
}

// runStep runs fn under the per-step timeout and classifies the result.
// The returned error is the executor error, if any, for wrapping.
func (r *Runner) runStep(
	ctx context.Context,
	logger *log.Logger,
	step model.StepName,
	cmd executor.Command,
	fn func(context.Context) (executor.Result, error),
) (model.StepResult, error) {
	logger = logger.With("step", step)
	logger.Debug("running", "command", cmd.String(), "dir", cmd.Dir)
	r.reporter.StepStarted(step, cmd)

	stepCtx := executor.WithLabels(ctx, map[string]string{LabelStep: step.String()})
	if r.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, r.opts.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := fn(stepCtx)

	result := model.StepResult{
		Step:     step,
		Status:   model.StepOK,
		ExitCode: res.ExitCode,
		Dir:      cmd.Dir,
		Command:  cmd.String(),
		Duration: time.Since(start),
	}
	if err != nil || !res.Success() {
		result.Status = model.StepFailed
		result.ExitCode = failureExitCode(res, err)
	}

	logger.Debug("finished", "exit_code", result.ExitCode, "status", result.Status, "duration", result.Duration, "err", err)
	return result, err
}

// failureExitCode picks the exit code to forward for a failed command.
func failureExitCode(res executor.Result, err error) int {
	switch {
	case res.ExitCode > 0:
		return res.ExitCode
	case errors.Is(err, exec.ErrNotFound):
		return int(model.ExitToolNotFound)
	default:
		return int(model.ExitGeneralError)
	}
}
