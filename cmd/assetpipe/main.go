package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/cmd/assetpipe/commands"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Out: os.Stdout}
	ctx := kong.Parse(&cli,
		kong.Name("assetpipe"),
		kong.Description("Static asset pipeline: bundles scripts and styles, renders pages, optimizes images."),
		kong.UsageOnError(),
		kong.Bind(global),
	)
	if err := ctx.Run(global, &cli); err != nil {
		foundationerrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
