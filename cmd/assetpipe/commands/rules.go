package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
)

// RulesCmd implements the 'rules' command.
type RulesCmd struct {
	Overlaps bool `help:"Also list later rules that match a file but never receive it"`
}

func (r *RulesCmd) Run(g *Global, root *CLI) error {
	opts, err := loadOptions(root, config.ModeBuild)
	if err != nil {
		return err
	}
	router, err := rules.Compile(opts.Config.Rules)
	if err != nil {
		return err
	}
	files, err := build.Discover(opts.Config.SourceDir())
	if err != nil {
		return err
	}
	a := router.Analyze(files)

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FILE\tRULE\tTYPE\tLOADERS")
	for _, as := range a.Assignments {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", as.Path, as.Rule.Name(), as.Rule.Type(), strings.Join(as.Rule.Use(), " <- "))
		if r.Overlaps {
			for _, o := range as.Overlaps {
				_, _ = fmt.Fprintf(tw, "\t  also %s\t\t\n", o.Name())
			}
		}
	}
	for _, f := range a.Unmatched {
		_, _ = fmt.Fprintf(tw, "%s\t(unmatched)\t\t\n", f)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, rule := range a.Shadowed {
		_, _ = fmt.Fprintf(g.Out, "shadowed: %s\n", rule)
	}
	for _, rule := range a.Unused {
		_, _ = fmt.Fprintf(g.Out, "unused: %s\n", rule)
	}
	return nil
}
