// Package configs provides the embedded configuration template for
// codescout. Embedding the template keeps it available in binary
// distributions, not just source checkouts.
//
// The template is written by `codescout init` as .codescout.yaml in
// the project root. Every option in it is commented out; defaults
// come from internal/config NewConfig, the file only overrides them.
package configs

import _ "embed"

// ProjectConfigTemplate is the starter .codescout.yaml written by
// `codescout init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
