package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

const shortTrace = `2040
4
10
1
a 0 2040
a 1 2040
f 1
a 2 48
a 3 4072
f 3
r 2 4072
f 0
f 2
a 1 16
`

// writeTrace writes a trace file into a temporary directory and returns
// its path.
func writeTrace(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	logDir = ""

	runCheckEvery = 0
	runCapacity = "20MiB"
	runChunk = 0
	runMapped = false
	runSeed = 1
	runParallel = 0
	runImageDir = ""

	genOps = 200
	genIDs = 20
	genMaxSize = "4KiB"
	genSeed = 1
	genWeight = 1
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
