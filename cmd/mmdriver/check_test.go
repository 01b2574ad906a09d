package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		json        bool
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "clean trace",
			body:        shortTrace,
			wantContain: []string{"short1.rep", "ok", "10 ops", "checks"},
		},
		{
			name:        "clean trace json",
			body:        shortTrace,
			json:        true,
			wantContain: []string{`"ok": true`, `"ops": 10`},
		},
		{
			name:    "malformed trace",
			body:    "100\n1\n2\n1\na 0 8\nx 0\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json
			path := writeTrace(t, "short1.rep", tt.body)

			output, err := captureOutput(t, func() error {
				return runCheck(context.Background(), []string{path})
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}
