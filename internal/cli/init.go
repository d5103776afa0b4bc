package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

type initFlags struct {
	output  string
	project string
	data    string
	force   bool
}

// NewInitCommand creates the "init" command, which writes a starter
// config file.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .clusterone.yaml",
		Long: `Write a config file holding the default settings.

Examples:
  clusterone-push init
  clusterone-push init --project ./model --data ~/datasets/mnist
  clusterone-push init --output ci/clusterone.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := runInit(flags, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			okColor.Fprintf(cmd.OutOrStdout(), "✔ wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", config.DiscoveryOrder[0], "File to write")
	cmd.Flags().StringVar(&flags.project, "project", "", "Project directory to record")
	cmd.Flags().StringVar(&flags.data, "data", "", "Data directory to record")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing file")

	return cmd
}

// runInit writes the starter file and returns its absolute path.
func runInit(flags *initFlags, logger *log.Logger) (string, error) {
	path, err := filepath.Abs(flags.output)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to resolve output path", err)
	}

	if err := config.WriteStarter(path, config.Starter(flags.project, flags.data), flags.force); err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to write %s (use --force to overwrite)", flags.output), err)
	}
	logger.Debug("wrote starter config", "path", path)
	return path, nil
}
