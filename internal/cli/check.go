package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/git"
	"github.com/shinji-kodama/clusterone-push/internal/helper"
	"github.com/shinji-kodama/clusterone-push/internal/model"
	"github.com/shinji-kodama/clusterone-push/internal/workflow"
)

// checkReport is the result of a successful preflight check.
type checkReport struct {
	Project model.Location `json:"project"`
	Data    model.Location `json:"data"`

	Remote string `json:"remote"`
	Branch string `json:"branch"`
	// RemoteURLs maps each target to the push URL of the remote.
	RemoteURLs map[model.Target]string `json:"remoteUrls"`
	// CheckedOut maps each target to the branch checked out in its working
	// tree. It may differ from Branch; the push does not depend on it.
	CheckedOut map[model.Target]string `json:"checkedOut"`

	// HelperVersion is empty when pip could not report it and no minimum
	// was required.
	HelperVersion string `json:"helperVersion,omitempty"`
}

// NewCheckCommand creates the "check" command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without pushing anything",
		Long: `Run the preflight part of the workflow locally:

  - PROJECT_DIR and DATA_DIR must name existing directories
  - both must be git working trees with the configured remote and branch
  - with --min-helper-version, the installed helper must be recent enough

Nothing is pushed and no job is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr())
			cfg, err := loadConfig(cmd, logger)
			if err != nil {
				return err
			}
			versions := helper.NewPip(executor.NewLocal(io.Discard, io.Discard), cfg.UpdateArgv(), cfg.Update.Package)
			report, err := runCheck(cmd.Context(), cfg, versions, logger)
			if err != nil {
				return err
			}
			return printCheckReport(cmd.OutOrStdout(), report)
		},
	}
	addWorkflowFlags(cmd)
	return cmd
}

// runCheck performs the preflight checks in workflow order.
func runCheck(ctx context.Context, cfg *config.Config, versions helper.VersionProvider, logger *log.Logger) (*checkReport, error) {
	project, data, err := workflow.ResolveInputs(workflow.Inputs{
		ProjectDir: cfg.ProjectDir,
		DataDir:    cfg.DataDir,
	})
	if err != nil {
		return nil, err
	}
	report := &checkReport{
		Project:    project,
		Data:       data,
		Remote:     cfg.Remote,
		Branch:     cfg.Branch,
		RemoteURLs: map[model.Target]string{},
		CheckedOut: map[model.Target]string{},
	}

	gm := git.NewManager(executor.NewLocal(io.Discard, io.Discard))
	for _, loc := range []struct {
		target model.Target
		path   string
	}{
		{model.TargetProject, project.Path},
		{model.TargetData, data.Path},
	} {
		if _, err := gm.GetRepoRoot(ctx, loc.path); err != nil {
			return nil, model.WrapCLIError(model.ExitGitError,
				fmt.Sprintf("the %s directory is not a git working tree", loc.target), err)
		}
		remote, err := gm.FindRemote(ctx, loc.path, cfg.Remote)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGitError,
				fmt.Sprintf("the %s repository has no %q remote", loc.target, cfg.Remote), err)
		}
		if !gm.BranchExists(ctx, loc.path, cfg.Branch) {
			return nil, model.NewCLIError(model.ExitGitError,
				fmt.Sprintf("the %s repository has no branch %q", loc.target, cfg.Branch))
		}
		current, err := gm.GetCurrentBranch(ctx, loc.path)
		if err != nil {
			return nil, err
		}
		logger.Debug("remote", "target", loc.target, "name", remote.Name, "url", remote.PushURL, "checked_out", current)
		report.RemoteURLs[loc.target] = remote.PushURL
		report.CheckedOut[loc.target] = current
	}

	installed, err := versions.InstalledVersion(ctx)
	if cfg.Update.MinVersion == "" {
		if err != nil {
			logger.Debug("helper version unavailable", "err", err)
		}
		report.HelperVersion = installed
		return report, nil
	}
	if err != nil {
		return nil, model.HelperOutdated("", cfg.Update.MinVersion, err)
	}
	ok, err := helper.AtLeast(installed, cfg.Update.MinVersion)
	if err != nil {
		return nil, model.HelperOutdated(installed, cfg.Update.MinVersion, err)
	}
	if !ok {
		return nil, model.HelperOutdated(installed, cfg.Update.MinVersion, nil)
	}
	report.HelperVersion = installed
	return report, nil
}

func printCheckReport(w io.Writer, report *checkReport) error {
	if jsonOutput {
		return writeJSON(w, report)
	}

	okColor.Fprintf(w, "✔ %s: %s\n", model.EnvProjectDir, report.Project.Path)
	okColor.Fprintf(w, "✔ %s: %s\n", model.EnvDataDir, report.Data.Path)
	for _, target := range []model.Target{model.TargetProject, model.TargetData} {
		okColor.Fprintf(w, "✔ %s remote %s: %s\n", target, report.Remote, report.RemoteURLs[target])
		if current := report.CheckedOut[target]; current != report.Branch {
			warnColor.Fprintf(w, "! %s has %s checked out; %s will be pushed\n", target, current, report.Branch)
		}
	}
	if report.HelperVersion != "" {
		okColor.Fprintf(w, "✔ helper version: %s\n", report.HelperVersion)
	} else {
		warnColor.Fprintln(w, "! helper version unknown")
	}
	return nil
}
