package commands

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/verify"
)

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Twice   bool `help:"Compare two fresh builds instead of the existing output"`
	Context int  `help:"Context lines in patches" default:"3"`
}

func (v *VerifyCmd) Run(g *Global, root *CLI) error {
	opts, err := loadOptions(root, config.ModeBuild)
	if err != nil {
		return err
	}
	res, err := verify.Run(context.Background(), opts, verify.Options{Twice: v.Twice, Context: v.Context})
	if err != nil {
		return err
	}
	res.Write(g.Out)
	if !res.Clean() {
		return foundationerrors.BuildError("output differs from a fresh build").
			WithContext("path", res.Compared).
			WithContext("files", len(res.Diffs)).
			Build()
	}
	return nil
}
