package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/search"
	"github.com/codescout/codescout/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit    int
	adaptive bool     // route via the coarse query router
	classify bool     // route via the fine query classifier
	rerank   string   // "", "on", "off"
	filters  []string // key=value metadata filters
	format   string   // "text", "json"
	noColor  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed snippets",
		Long: `Search the indexed snippets with hybrid retrieval.

Lexical and dense results are fused with Reciprocal Rank Fusion.
With --classify the query classifier picks per-class retrieval
settings; with --adaptive the coarse router picks the strategy.

Examples:
  codescout search "authentication middleware"
  codescout search "HTTPException" --classify
  codescout search "how to add middleware" --adaptive
  codescout search "retry logic" --rerank on --limit 5
  codescout search "handler" --filter language=python`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.adaptive, "adaptive", false, "Pick the retrieval strategy with the query router")
	cmd.Flags().BoolVar(&opts.classify, "classify", false, "Pick retrieval settings with the query classifier")
	cmd.Flags().StringVar(&opts.rerank, "rerank", "", "Force reranking on or off (default: per strategy)")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.adaptive && opts.classify {
		return fmt.Errorf("--adaptive and --classify are mutually exclusive")
	}

	filters, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}

	searchOpts := search.SearchOptions{
		Limit:         opts.limit,
		UseClassifier: opts.classify,
		Filters:       filters,
	}
	switch opts.rerank {
	case "":
	case "on":
		t := true
		searchOpts.Rerank = &t
	case "off":
		f := false
		searchOpts.Rerank = &f
	default:
		return fmt.Errorf("--rerank must be on or off, got %q", opts.rerank)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("search_started",
		slog.String("query", query),
		slog.Int("limit", opts.limit),
		slog.Bool("adaptive", opts.adaptive),
		slog.Bool("classify", opts.classify))

	var searcher search.Searcher = a.engine
	if opts.adaptive {
		searcher = search.NewAdaptiveSearcher(a.engine)
	}

	results, err := searcher.Search(ctx, query, searchOpts)
	if err != nil {
		ui.NewResultPrinter(cmd.ErrOrStderr(), opts.noColor).PrintError(err)
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	ui.NewResultPrinter(cmd.OutOrStdout(), opts.noColor).PrintResults(query, results)
	return nil
}

// parseFilters splits repeatable key=value flags into a metadata
// filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}
