package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout/codescout/internal/config"
)

func runInitIn(t *testing.T, dir string, force bool) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&out)

	require.NoError(t, runInit(cmd, dir, force))
	return out.String()
}

func TestInit_WritesTemplate(t *testing.T) {
	dir := t.TempDir()

	out := runInitIn(t, dir, false)
	assert.Contains(t, out, "Wrote")

	data, err := os.ReadFile(filepath.Join(dir, ".codescout.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# CodeScout project configuration")

	// The template must load cleanly with defaults intact.
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestInit_PreservesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".codescout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nsearch:\n  rrf_constant: 30\n"), 0o644))

	out := runInitIn(t, dir, false)
	assert.Contains(t, out, "preserved")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
}

func TestInit_PreservesYmlExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yml"), []byte("version: 1\n"), 0o644))

	out := runInitIn(t, dir, false)
	assert.Contains(t, out, "preserved")

	_, err := os.Stat(filepath.Join(dir, ".codescout.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestInit_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".codescout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nsearch:\n  rrf_constant: 30\n"), 0o644))

	out := runInitIn(t, dir, true)
	assert.Contains(t, out, "Wrote")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}
