package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/pkg/codescope"
)

type searchOptions struct {
	limit    int
	language string
	path     string
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search fuses symbol, full-text, structural, and semantic hits with
reciprocal rank fusion.

Examples:
  codescope search "parse config"
  codescope search handleRequest --language go --limit 5
  codescope search "retry logic" --path internal/embed --format json`,
		Args: cobra.MinimumNArgs(1),
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

			results, err := project.Search(cmd.Context(), search.Query{
				Text:  strings.Join(args, " "),
				Limit: opts.limit,
				Filters: search.Filters{
					Language:   opts.language,
					PathPrefix: opts.path,
				},
			})
			if err != nil {
				return err
			}

			if opts.format == "json" {
				return out.JSON(results)
			}
			out.SearchResults(results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language (e.g. go, python)")
	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Filter by path prefix")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}
