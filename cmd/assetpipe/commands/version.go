package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global) error {
	_, err := fmt.Fprintln(g.Out, version.String())
	return err
}
