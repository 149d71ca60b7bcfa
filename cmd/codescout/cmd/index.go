package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/store"
)

// indexBatchSize bounds memory while streaming large corpora.
const indexBatchSize = 256

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file.jsonl>",
		Short: "Index a JSONL corpus of code snippets",
		Long: `Index a corpus of code snippets into the lexical index, the dense
index and the candidate store.

The input is JSON Lines, one candidate per line:

  {"id": "auth.py::login", "text": "def login(...): ...", "metadata": {"file": "auth.py", "function": "login"}}

Pass "-" to read from stdin.

Examples:
  codescout index snippets.jsonl
  cat snippets.jsonl | codescout index -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	var in io.Reader
	if path == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open corpus: %w", err)
		}
		defer f.Close()
		in = f
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	total, err := indexStream(ctx, a, in)
	if err != nil {
		return err
	}
	if err := a.saveDense(); err != nil {
		return fmt.Errorf("save dense index: %w", err)
	}

	slog.Info("index_complete",
		slog.Int("candidates", total),
		slog.Duration("elapsed", time.Since(start)))
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d candidates in %s\n",
		total, time.Since(start).Round(time.Millisecond))
	return nil
}

// indexStream decodes candidates line by line and indexes them in
// batches. A malformed line fails the whole run so a partial index is
// never mistaken for a complete one.
func indexStream(ctx context.Context, a *app, in io.Reader) (int, error) {
	dec := json.NewDecoder(in)
	batch := make([]store.Candidate, 0, indexBatchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.engine.Index(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		var c store.Candidate
		if err := dec.Decode(&c); err != nil {
			if err == io.EOF {
				break
			}
			return total, fmt.Errorf("parse candidate %d: %w", total+len(batch)+1, err)
		}
		if c.ID == "" {
			return total, fmt.Errorf("candidate %d has no id", total+len(batch)+1)
		}
		batch = append(batch, c)
		if len(batch) >= indexBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
