package cmd

import (
	"bytes"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/reader"
	"github.com/pithecene-io/mstream/cli/render"
	"github.com/pithecene-io/mstream/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect parses a serialized document and describes its parts. It never
// writes.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Describe the parts of a multipart document",
		ArgsUsage: "<file | - | stored name>",
		Flags: concat(CommonFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "boundary",
				Usage: "Boundary override (default: read from the document)",
			},
			&cli.BoolFlag{
				Name:  "from-store",
				Usage: "Read the named document from the document store",
			},
		}, OutputFlags(), StorageFlags()),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("document required (file path, - for stdin, or a stored name with --from-store)", exitInvalidInput)
	}
	arg := c.Args().First()

	r, err := render.NewWithWriter(c.String("format"), c.Bool("no-color"), c.App.Writer)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	src, err := openDocument(c, arg)
	if err != nil {
		return err
	}
	defer src.Close()

	view, err := reader.Parse(src, reader.ParseOptions{Boundary: c.String("boundary")})
	if err != nil {
		return cli.Exit("parse document: "+err.Error(), exitFailure)
	}

	if c.Bool("tui") {
		return tui.Run(tui.ViewInspectDocument, view)
	}
	return r.Render(view)
}

func openDocument(c *cli.Context, arg string) (io.ReadCloser, error) {
	if c.Bool("from-store") {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		logger := newLogger(c, cfg).Named("inspect")
		choice := resolveStore(c, cfg)
		ctx, cancel := choice.context(c.Context)
		defer cancel()

		store, err := openStore(ctx, choice, logger, nil)
		if err != nil {
			return nil, err
		}
		rc, err := reader.NewStoreReader(store).Open(ctx, arg)
		if err != nil {
			return nil, storageExit(err)
		}
		defer rc.Close()
		// Read while the store context is live.
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, storageExit(err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	if arg == "-" {
		return io.NopCloser(c.App.Reader), nil
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitInvalidInput)
	}
	return f, nil
}
