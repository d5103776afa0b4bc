package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// addWorkflowFlags registers the flags that override configuration keys.
// They are not bound to variables: config.Load looks them up by name and
// only honors the ones that were set.
func addWorkflowFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("project-dir", "", "Project repository directory (overrides $"+model.EnvProjectDir+")")
	f.String("data-dir", "", "Data repository directory (overrides $"+model.EnvDataDir+")")
	f.String("remote", "", "Git remote to push to (default: clusterone)")
	f.String("branch", "", "Branch to push (default: master)")
	f.Bool("skip-update", false, "Skip the helper self-update")
	f.String("update-on-failure", "", "What a failed self-update does: warn or fail (default: warn)")
	f.String("min-helper-version", "", "Minimum helper version required after the update")
	f.StringArray("job-arg", nil, "Extra argument for the job-creation command (repeatable)")
	f.String("executor", "", "Where commands run: local or docker (default: local)")
	f.String("docker-image", "", "Image for the docker executor")
	f.Duration("step-timeout", 0, "Time limit for each external command (0 means none)")
	f.Bool("dry-run", false, "Print the commands without running them")
}

// loadConfig resolves the configuration for cmd. Failures are
// configuration errors and exit with ExitGeneralError.
func loadConfig(cmd *cobra.Command, logger *log.Logger) (*config.Config, error) {
	cfg, path, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	if path != "" {
		logger.Debug("loaded config file", "path", path)
	}
	return cfg, nil
}

// newLogger creates the structured logger used for diagnostics on w.
// Debug output is enabled by --verbose.
func newLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "clusterone-push",
		ReportTimestamp: verbose,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
