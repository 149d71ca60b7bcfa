// Package ui renders search results to the terminal, styled when
// stdout is a TTY and plain when piped.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/codescout/codescout/internal/search"
)

// maxSnippetLines caps how much candidate text a result shows.
const maxSnippetLines = 5

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ResultPrinter renders ranked search results.
type ResultPrinter struct {
	out    io.Writer
	styles Styles
}

// NewResultPrinter creates a printer. Color is used only when the
// writer is a TTY and noColor is false.
func NewResultPrinter(out io.Writer, noColor bool) *ResultPrinter {
	return &ResultPrinter{
		out:    out,
		styles: GetStyles(noColor || !IsTTY(out)),
	}
}

// PrintResults renders the ranked list.
func (p *ResultPrinter) PrintResults(query string, results []*search.Result) {
	s := p.styles

	if len(results) == 0 {
		fmt.Fprintln(p.out, s.Dim.Render("no results for ")+s.Header.Render(query))
		return
	}

	fmt.Fprintln(p.out, s.Header.Render(fmt.Sprintf("%d results for %q", len(results), query)))
	fmt.Fprintln(p.out)

	for i, r := range results {
		header := fmt.Sprintf("%s %s  %s",
			s.Rank.Render(fmt.Sprintf("%2d.", i+1)),
			s.ID.Render(r.Candidate.ID),
			s.Score.Render(formatScores(r)))
		fmt.Fprintln(p.out, header)

		if loc := formatLocation(r); loc != "" {
			fmt.Fprintln(p.out, "    "+s.Label.Render(loc))
		}
		for _, line := range snippetLines(r.Candidate.Text) {
			fmt.Fprintln(p.out, "    "+s.Snippet.Render(line))
		}
		fmt.Fprintln(p.out)
	}
}

// PrintError renders an error line.
func (p *ResultPrinter) PrintError(err error) {
	fmt.Fprintln(p.out, p.styles.Error.Render("error: ")+err.Error())
}

func formatScores(r *search.Result) string {
	if r.RerankScore != nil {
		return fmt.Sprintf("rerank=%.3f fusion=%.4f", *r.RerankScore, r.FusionScore)
	}
	return fmt.Sprintf("fusion=%.4f", r.FusionScore)
}

func formatLocation(r *search.Result) string {
	var parts []string
	if fn := r.Candidate.Metadata["function"]; fn != "" {
		parts = append(parts, fn)
	}
	if file := r.Candidate.Metadata["file"]; file != "" {
		parts = append(parts, file)
	}
	return strings.Join(parts, "  ")
}

func snippetLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxSnippetLines {
		lines = append(lines[:maxSnippetLines], "...")
	}
	return lines
}
