package commands

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	opts, err := loadOptions(root, config.ModeBuild)
	if err != nil {
		return err
	}
	return buildOnce(context.Background(), g, opts)
}
