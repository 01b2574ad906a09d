package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segalloc/trace"
)

func TestGenCommand(t *testing.T) {
	resetFlags()
	out := filepath.Join(t.TempDir(), "random.rep")

	output, err := captureOutput(t, func() error {
		return runGen([]string{out})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"Wrote", "random.rep", "ids"})

	tr, err := trace.Load(out)
	require.NoError(t, err)
	require.Equal(t, 20, tr.NumIDs)
	require.GreaterOrEqual(t, len(tr.Ops), 200)
	for _, op := range tr.Ops {
		require.LessOrEqual(t, op.Size, 4096)
	}
}

func TestGenCommandDeterministic(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.rep")
	b := filepath.Join(dir, "b.rep")

	for _, out := range []string{a, b} {
		_, err := captureOutput(t, func() error { return runGen([]string{out}) })
		require.NoError(t, err)
	}

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, string(da), string(db))
}

func TestGenCommandStdout(t *testing.T) {
	resetFlags()
	genOps = 10
	genIDs = 3

	output, err := captureOutput(t, func() error {
		return runGen([]string{"-"})
	})
	require.NoError(t, err)

	path := writeTrace(t, "stdout.rep", output)
	tr, err := trace.Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, tr.NumIDs)
}

func TestGenCommandBadMaxSize(t *testing.T) {
	resetFlags()
	genMaxSize = "0"

	_, err := captureOutput(t, func() error {
		return runGen([]string{filepath.Join(t.TempDir(), "x.rep")})
	})
	require.Error(t, err)
}

func TestGenThenRun(t *testing.T) {
	resetFlags()
	out := filepath.Join(t.TempDir(), "gen.rep")
	_, err := captureOutput(t, func() error { return runGen([]string{out}) })
	require.NoError(t, err)

	runCheckEvery = 50
	output, err := captureOutput(t, func() error {
		return runRun(context.Background(), []string{out})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"gen.rep", "total"})
}
