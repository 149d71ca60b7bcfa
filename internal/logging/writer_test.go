package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello log\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello log\n", string(data))
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()
	w.SetImmediateSync(false)

	// Push well past 1MB in chunks.
	chunk := []byte(strings.Repeat("x", 64*1024))
	for i := 0; i < 20; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file must exist")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024*1024)+int64(len(chunk)))
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()
	w.SetImmediateSync(false)

	chunk := []byte(strings.Repeat("x", 256*1024))
	for i := 0; i < 40; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 3, "active file plus at most maxFiles rotations")
}

func TestRotatingWriter_CreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "test.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	_, err = fmt.Fprintln(w, "created")
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input).String())
		})
	}
	assert.Equal(t, parseLevel("debug"), LevelFromString("debug"))
}
