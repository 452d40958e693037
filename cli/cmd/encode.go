package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/multipart"
)

// EncodeCommand returns the encode command.
func EncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Apply (or undo) a content-transfer encoding",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "encoding",
				Aliases:  []string{"e"},
				Usage:    "quoted-printable, base64, 7bit, 8bit or binary",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "decode",
				Aliases: []string{"d"},
				Usage:   "Decode instead of encode",
			},
		},
		Action: encodeAction,
	}
}

// encodeAction streams a file (or stdin) through the encoder to stdout.
func encodeAction(c *cli.Context) error {
	scheme, err := multipart.NormalizeEncoding(c.String("encoding"))
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	var in io.Reader = c.App.Reader
	if c.NArg() > 0 && c.Args().First() != "-" {
		f, err := os.Open(c.Args().First())
		if err != nil {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		defer f.Close()
		in = f
	}

	if c.Bool("decode") {
		dec, err := multipart.NewDecoder(in, scheme)
		if err != nil {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		if _, err := io.Copy(c.App.Writer, dec); err != nil {
			return cli.Exit(fmt.Sprintf("decode %s: %v", scheme, err), exitFailure)
		}
		return nil
	}

	enc, err := multipart.NewEncoder(c.App.Writer, scheme)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	if _, err := io.Copy(enc, in); err != nil {
		return cli.Exit(fmt.Sprintf("encode %s: %v", scheme, err), exitFailure)
	}
	if err := enc.Close(); err != nil {
		return cli.Exit(fmt.Sprintf("encode %s: %v", scheme, err), exitFailure)
	}
	return nil
}
