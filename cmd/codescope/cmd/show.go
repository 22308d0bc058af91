package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/pkg/codescope"
)

func newShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <chunk-id>",
		Short: "Show a chunk by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			project, err := codescope.Open(cmd.Context(), root, codescope.Options{
				DisableEmbeddings: noEmbed,
			})
			if err != nil {
				return err
			}
			defer func() { _ = project.Close() }()

			c, ok := project.GetChunk(args[0])
			if !ok {
				return fmt.Errorf("no chunk with id %s", args[0])
			}

			if format == "json" {
				return out.JSON(c)
			}
			out.Statusf("%s  %s:%d-%d  [%s %s]",
				c.Name, c.Location.Path, c.Location.StartLine, c.Location.EndLine,
				c.Language, c.Level)
			out.Newline()
			out.Status(c.CompactedText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
