package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.engine.Stats(cmd.Context())
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index directory: %s\n", a.cfg.Paths.IndexDir)
			fmt.Fprintf(out, "Lexical documents: %d\n", stats.LexicalCount)
			fmt.Fprintf(out, "Dense vectors:     %d\n", stats.DenseCount)
			fmt.Fprintf(out, "Candidates:        %d\n", stats.CandidateCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")
	return cmd
}
