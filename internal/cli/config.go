package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// NewConfigCommand creates the "config" command, which prints the resolved
// configuration after defaults, file, environment and flags are merged.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "failed to render configuration", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	addWorkflowFlags(cmd)
	return cmd
}
