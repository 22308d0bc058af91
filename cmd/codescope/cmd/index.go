package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/pkg/codescope"
)

func newIndexCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the current directory",
		Long: `Index walks the project, parses supported source files, and brings
the on-disk index up to date. Unchanged files are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			stats, err := project.Index(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				return out.JSON(stats)
			}

			out.Successf("indexed %d files (%d chunks) in %s",
				stats.FilesIndexed, stats.Chunks, stats.Duration.Round(time.Millisecond))
			if stats.FilesSkipped > 0 {
				out.Statusf("  %d files unchanged", stats.FilesSkipped)
			}
			if stats.FilesRemoved > 0 {
				out.Statusf("  %d files removed", stats.FilesRemoved)
			}
			if stats.Embedded > 0 {
				out.Statusf("  %d chunks embedded", stats.Embedded)
			}
			for _, fe := range stats.Errors {
				out.Warningf("%s: %s", fe.Path, fe.Message)
			}
			if !project.EmbeddingsEnabled() {
				out.Status("embeddings disabled, semantic search unavailable")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
