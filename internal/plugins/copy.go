package plugins

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func init() { build.RegisterPlugin("copy", newCopy) }

// CopyPattern copies the source subtree From to To in the output.
type CopyPattern struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type copyOptions struct {
	Patterns []CopyPattern `yaml:"patterns"`
}

type copyPlugin struct {
	patterns []CopyPattern
}

func newCopy(_ *config.Config, _ config.Options, pc config.PluginConfig) (build.Plugin, error) {
	var opts copyOptions
	if err := pc.Decode(&opts); err != nil {
		return nil, err
	}
	for _, p := range opts.Patterns {
		if p.From == "" || filepath.IsAbs(p.From) {
			return nil, foundationerrors.ValidationError("copy pattern needs a relative from path").
				WithContext("plugin", "copy").
				WithContext("path", p.From).
				Build()
		}
	}
	return &copyPlugin{patterns: opts.Patterns}, nil
}

func (c *copyPlugin) Name() string { return "copy" }

// Apply copies files byte for byte. A missing source directory is a warning.
func (c *copyPlugin) Apply(ctx context.Context, comp *build.Compilation) error {
	var missing []string
	for _, p := range c.patterns {
		from := path.Clean(filepath.ToSlash(p.From))
		root := comp.SourcePath(from)
		st, err := os.Stat(root)
		if err != nil {
			missing = append(missing, from)
			continue
		}
		if !st.IsDir() {
			data, err := os.ReadFile(root)
			if err != nil {
				return readError(err, from)
			}
			comp.Put(&build.Asset{Path: path.Join(p.To, path.Base(from)), Contents: data, Class: build.ClassCopy, Source: from})
			continue
		}
		files, err := build.Discover(root)
		if err != nil {
			return readError(err, from)
		}
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := path.Join(from, rel)
			data, err := os.ReadFile(comp.SourcePath(src))
			if err != nil {
				return readError(err, src)
			}
			comp.Put(&build.Asset{Path: path.Join(p.To, rel), Contents: data, Class: build.ClassCopy, Source: src})
		}
	}
	if len(missing) > 0 {
		return foundationerrors.PluginError("copy source not found").
			Warning().
			WithContext("plugin", "copy").
			WithContext("path", missing).
			Build()
	}
	return nil
}

func readError(err error, rel string) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read source file").
		WithContext("plugin", "copy").
		WithContext("file", rel).
		Build()
}
