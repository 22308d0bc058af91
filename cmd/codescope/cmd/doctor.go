package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for problems",
		Long: `Doctor verifies that the configuration parses, the data directory is
writable, grammars are registered, and the embedding provider is
reachable when one is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			checker := preflight.New(lang.NewRegistry())
			results := checker.RunAll(cmd.Context(), root)

			if format == "json" {
				if err := out.JSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					switch r.Status {
					case preflight.StatusPass:
						out.Successf("%s: %s", r.Name, r.Detail)
					case preflight.StatusWarn:
						out.Warningf("%s: %s", r.Name, r.Detail)
					default:
						out.Error(fmt.Sprintf("%s: %s", r.Name, r.Detail))
					}
				}
			}

			if preflight.HasCriticalFailures(results) {
				return fmt.Errorf("environment check failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
