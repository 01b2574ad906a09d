package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	t.Helper()
	prev := L
	t.Cleanup(func() { L = prev })
}

func TestInitDisabledDiscards(t *testing.T) {
	restore(t)
	require.NoError(t, Init(Options{Enabled: false}))
	assert.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInitWriterHonoursLevel(t *testing.T) {
	restore(t)
	var out bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Output: &out, Level: slog.LevelWarn}))

	Info("hidden")
	Warn("invalid free", "ptr", 24)

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "invalid free")
	assert.Contains(t, out.String(), "ptr=24")
}

func TestInitJSON(t *testing.T) {
	restore(t)
	var out bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Output: &out, JSON: true, Level: slog.LevelDebug}))

	Debug("grow", "bytes", 512)
	assert.Contains(t, out.String(), `"msg":"grow"`)
	assert.Contains(t, out.String(), `"bytes":512`)
}

func TestInitLogDirCreatesDatedFile(t *testing.T) {
	restore(t)
	dir := t.TempDir()
	require.NoError(t, Init(Options{Enabled: true, LogDir: dir}))
	Error("boom")

	name := logPrefix + time.Now().Format("2006-01-02") + logSuffix
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), "boom")
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := filepath.Join(dir, logPrefix+"2025-12-01"+logSuffix)
	fresh := filepath.Join(dir, logPrefix+"2026-02-27"+logSuffix)
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	cleanOldLogs(dir, now)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"1":     slog.LevelDebug,
	}
	for in, want := range cases {
		got, known := ParseLevel(in)
		assert.True(t, known, in)
		assert.Equal(t, want, got, in)
	}
	_, known := ParseLevel("chatty")
	assert.False(t, known)
}
