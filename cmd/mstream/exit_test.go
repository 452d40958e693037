package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	exitErrHandler(nil, nil)
}

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{"exit code 0 no message", cli.Exit("", 0), 0, ""},
		{"bare exit status", cli.Exit("", 3), 3, ""},
		{"build failure", cli.Exit("write document: broken pipe", 1), 1, "write document: broken pipe\n"},
		{"invalid input", cli.Exit("--field must be name=value, got \"x\"", 2), 2, "--field must be name=value, got \"x\"\n"},
		{"storage failure", cli.Exit("storage: put documents/a: timeout: boom", 3), 3, "storage: put documents/a: timeout: boom\n"},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner error", 42)), 42, "inner error\n"},
		{"regular error", errors.New("regular error"), 1, "Error: regular error\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := report(&out, tt.err); got != tt.wantCode {
				t.Errorf("code = %d, want %d", got, tt.wantCode)
			}
			if out.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}
