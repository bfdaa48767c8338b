package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonomal/stract/internal/postings"
	"github.com/nonomal/stract/internal/search"
)

func newSearchCmd() *cobra.Command {
	var path string
	var limit int
	var offset int
	var format string
	var deRank bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a local postings index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			idx, err := postings.Open(path)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()

			searcher := search.New(idx, nil, nil, nil, cfg, log)

			resp, err := searcher.Search(context.Background(), search.Request{
				Query:         query,
				TopN:          limit,
				Offset:        offset,
				DeRankSimilar: deRank,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp.Hits)
			}
			return printTextResults(cmd, query, resp)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "index directory")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "result offset")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	cmd.Flags().BoolVar(&deRank, "de-rank-similar", true, "de-rank near-duplicate results")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func printTextResults(cmd *cobra.Command, query string, resp *search.Response) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%d results for %q (showing %d):\n\n", resp.Total, query, len(resp.Hits))
	for i, hit := range resp.Hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n", i+1, hit.Title, hit.Url)
		if hit.Snippet != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", hit.Snippet)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
