// Package cmd provides the commands of the mstream binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes.
const (
	exitSuccess = 0
	// exitFailure covers build, encode and parse failures.
	exitFailure = 1
	// exitInvalidInput covers bad flags, config files and field frames.
	exitInvalidInput = 2
	// exitStorage covers document store failures.
	exitStorage = 3
)

var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the interactive Bubble Tea view where one exists.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}

	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to mstream.yaml or mstream.toml",
	}

	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
		Value: "warn",
	}
)

// OutputFlags returns the flags shared by commands that render results.
// --tui is always accepted so commands without a TUI can reject it with an
// explicit message.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// StorageFlags returns the document store flags. Each overrides the
// matching storage key of the config file.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Document store backend: fs, s3, memory",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Store path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
		&cli.DurationFlag{
			Name:  "storage-timeout",
			Usage: "Timeout for store operations (0 = none)",
		},
		&cli.StringFlag{
			Name:  "compression",
			Usage: "Stored document compression: none, lz4",
		},
	}
}

// CommonFlags returns the flags every command that reads config accepts.
func CommonFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, LogLevelFlag}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
