package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/configs"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Init writes .codescope.yaml with defaults to the current directory
and creates the index data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			cfgPath := filepath.Join(root, config.ConfigFileName)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigFileName)
			}

			if err := os.WriteFile(cfgPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return err
			}
			if err := os.MkdirAll(config.DataDir(root), 0o755); err != nil {
				return err
			}

			out.Successf("wrote %s", config.ConfigFileName)
			out.Statusf("run 'codescope index' to build the index")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
