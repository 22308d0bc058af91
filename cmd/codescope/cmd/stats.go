package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/telemetry"
	"github.com/codescope/codescope/pkg/codescope"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
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

			stats := project.Stats()
			if format == "json" {
				return out.JSON(struct {
					store.Stats
					Queries telemetry.Summary `json:"queries"`
				}{stats, project.QueryMetrics()})
			}

			out.Status("index statistics")
			out.Field("files", stats.Paths)
			out.Field("chunks", stats.Documents)
			out.Field("symbols", stats.Symbols)
			out.Field("text docs", stats.TextDocs)
			out.Field("vectors", stats.Vectors)
			mode := "disabled"
			if project.EmbeddingsEnabled() {
				mode = "enabled"
			}
			out.Field("embeddings", mode)

			if snap, err := index.LoadStatus(config.DataDir(root)); err == nil && snap != nil {
				out.Newline()
				out.Statusf("last index run (%s)", snap.State)
				out.Field("indexed", snap.FilesIndexed)
				out.Field("skipped", snap.FilesSkipped)
				out.Field("removed", snap.FilesRemoved)
				if snap.ErrorCount > 0 {
					out.Field("errors", snap.ErrorCount)
				}
			}

			qm := project.QueryMetrics()
			if qm.TotalQueries > 0 {
				out.Newline()
				out.Status("query statistics")
				out.Field("queries", qm.TotalQueries)
				out.Field("zero results", qm.ZeroResults)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
