// Command codescout is the CLI entry point for the CodeScout hybrid
// search engine.
package main

import (
	"os"

	"github.com/codescout/codescout/cmd/codescout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
