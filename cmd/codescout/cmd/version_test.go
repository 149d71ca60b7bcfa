package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout/codescout/pkg/version"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "codescout")
	assert.Contains(t, out, version.Version)
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := runCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "codescout version "+version.Version+"\n", out)
}
