package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/docker"
	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/workflow"
)

// runWorkflow is the root command's action: load the configuration,
// validate the inputs, build the executor and run the workflow.
//
// In text mode, child output goes to stdout and status lines to stderr. In
// JSON mode, stdout carries only the Outcome document, so child output is
// sent to stderr as well.
func runWorkflow(ctx context.Context, cmd *cobra.Command) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	logger := newLogger(stderr)

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}

	// Input errors must not depend on the executor: a missing DATA_DIR is
	// reported the same way whether or not Docker is reachable.
	inputs := workflow.Inputs{ProjectDir: cfg.ProjectDir, DataDir: cfg.DataDir}
	project, data, err := workflow.ResolveInputs(inputs)
	if err != nil {
		return err
	}

	childOut := stdout
	if jsonOutput {
		childOut = stderr
	}

	ex, cleanup, err := newExecutor(ctx, cfg, []string{project.Path, data.Path}, logger, childOut, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	var reporter workflow.Reporter = newStatusReporter(stderr)
	if jsonOutput {
		reporter = nil
	}
	runner := newRunner(cfg, ex, logger, reporter)

	outcome, runErr := runner.Run(ctx, inputs)

	if jsonOutput {
		if err := writeJSON(stdout, outcome); err != nil {
			return err
		}
	} else if runErr == nil {
		if plan, ok := ex.(*executor.DryRun); ok {
			printDryRunSummary(stderr, plan.Planned())
		} else {
			printSummary(stderr, outcome)
		}
	}
	return runErr
}

// newExecutor selects the command backend. mounts are the directories the
// commands run in, which the docker backend shares with its container. The
// returned cleanup must be called once the workflow is done.
func newExecutor(
	ctx context.Context,
	cfg *config.Config,
	mounts []string,
	logger *log.Logger,
	stdout, stderr io.Writer,
) (executor.Executor, func(), error) {
	if cfg.DryRun {
		return executor.NewDryRun(stdout), func() {}, nil
	}

	if cfg.Executor != config.ExecutorDocker {
		return executor.NewLocal(stdout, stderr), func() {}, nil
	}

	client, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Debug("docker executor", "image", cfg.Docker.Image, "mounts", mounts)

	ex, err := docker.NewExecutor(client, docker.ExecutorConfig{
		Image:  cfg.Docker.Image,
		Mounts: mounts,
		Binds:  cfg.Docker.Binds,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := ex.Close(); err != nil {
			logger.Warn("failed to remove container", "err", err)
		}
		_ = client.Close()
	}
	return ex, cleanup, nil
}

// newRunner translates the configuration into workflow options. A nil
// reporter keeps the runner silent.
func newRunner(cfg *config.Config, ex executor.Executor, logger *log.Logger, reporter workflow.Reporter) *workflow.Runner {
	// Validated by config.Load.
	policy, _ := cfg.UpdatePolicy()

	opts := workflow.Options{
		Remote:           cfg.Remote,
		Branch:           cfg.Branch,
		UpdateCommand:    cfg.UpdateArgv(),
		HelperPackage:    cfg.Update.Package,
		SkipUpdate:       cfg.Update.Skip,
		UpdatePolicy:     policy,
		MinHelperVersion: cfg.Update.MinVersion,
		JobCommand:       cfg.JobArgv(),
		JobArgs:          cfg.Job.Args,
		StepTimeout:      cfg.StepTimeout,
	}

	runnerOpts := []workflow.RunnerOption{workflow.WithLogger(logger)}
	if reporter != nil {
		runnerOpts = append(runnerOpts, workflow.WithReporter(reporter))
	}
	if cfg.DryRun {
		// A dry run installs nothing, so there is no version to check.
		runnerOpts = append(runnerOpts, workflow.WithVersionProvider(nil))
	}
	return workflow.NewRunner(ex, opts, runnerOpts...)
}
