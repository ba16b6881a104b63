package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/archive"
	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// PackageCmd implements the 'package' command.
type PackageCmd struct {
	Output string `short:"o" help:"Archive path (default: <output dir>.tar.gz)" type:"path"`
	Build  bool   `help:"Run a build before packing"`
}

func (p *PackageCmd) Run(g *Global, root *CLI) error {
	opts, err := loadOptions(root, config.ModeBuild)
	if err != nil {
		return err
	}
	if p.Build {
		if err := buildOnce(context.Background(), g, opts); err != nil {
			return err
		}
	}
	dest := p.Output
	if dest == "" {
		dest = opts.Config.OutputDir() + ".tar.gz"
	}
	res, err := archive.Pack(opts.Config.OutputDir(), dest)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Packed %d files (%d bytes) into %s\n", len(res.Files), res.Size, res.Path)
	return nil
}
