package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/render"
	"github.com/pithecene-io/mstream/types"
)

// VersionResponse is the payload of the version command.
type VersionResponse struct {
	Version      string `json:"version"`
	FrameVersion string `json:"frame_version"`
	Commit       string `json:"commit"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  OutputFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version", exitInvalidInput)
		}
		r, err := render.NewWithWriter(c.String("format"), c.Bool("no-color"), c.App.Writer)
		if err != nil {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		return r.Render(VersionResponse{
			Version:      types.Version,
			FrameVersion: types.FrameVersion,
			Commit:       commit,
		})
	}
}
