package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/pkg/codescope"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index the current directory and keep it updated",
		Long: `Watch performs a full index pass, then applies filesystem changes
incrementally until interrupted. Rapid writes to the same path are
coalesced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			project, err := codescope.Open(ctx, root, codescope.Options{
				DisableEmbeddings: noEmbed,
			})
			if err != nil {
				return err
			}
			defer func() { _ = project.Close() }()

			stats, err := project.Index(ctx)
			if err != nil {
				return err
			}
			out.Successf("indexed %d files, watching for changes (ctrl-c to stop)", stats.FilesIndexed)

			err = project.Watch(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			out.Status("stopped")
			return nil
		},
	}
	return cmd
}
