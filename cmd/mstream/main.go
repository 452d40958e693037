// Package main provides the mstream CLI entrypoint.
//
// Usage:
//
//	mstream <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: build, encode or parse failure
//   - 2: invalid input (flags, config file, field frames)
//   - 3: document store failure
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/cmd"
	"github.com/pithecene-io/mstream/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "mstream",
		Usage:          "Build, encode and inspect streaming multipart documents",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.BuildCommand(),
			cmd.EncodeCommand(),
			cmd.InspectCommand(),
			cmd.ListCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// Errors that reach here were not cli.ExitCoder.
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(report(os.Stderr, err))
}

// report prints err and returns its exit code. cli.Exit codes are kept;
// anything else is 1.
func report(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N) reports "exit status N".
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
