package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	g.logger().Info("Initializing configuration", "path", root.Config, "force", i.Force)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Wrote %s\n", root.Config)
	return nil
}
