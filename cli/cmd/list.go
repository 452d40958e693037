package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/reader"
	"github.com/pithecene-io/mstream/cli/render"
)

// listWarningThreshold is the number of items above which list suggests
// --limit.
const listWarningThreshold = 100

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the documents in the document store",
		Flags: concat(CommonFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of documents to return (0 = no limit)",
			},
		}, OutputFlags(), StorageFlags()),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list", exitInvalidInput)
	}
	r, err := render.NewWithWriter(c.String("format"), c.Bool("no-color"), c.App.Writer)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg).Named("list")
	choice := resolveStore(c, cfg)
	ctx, cancel := choice.context(c.Context)
	defer cancel()

	store, err := openStore(ctx, choice, logger, nil)
	if err != nil {
		return err
	}
	items, err := reader.NewStoreReader(store).List(ctx)
	if err != nil {
		return storageExit(err)
	}

	limit := c.Int("limit")
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if limit == 0 && len(items) > listWarningThreshold && isStderrTTY() {
		fmt.Fprintf(c.App.ErrWriter, "Warning: returning %d documents. Consider using --limit to reduce output.\n\n", len(items))
	}
	return r.Render(items)
}

func isStderrTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}
