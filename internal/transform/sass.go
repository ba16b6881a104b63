//go:build cgo

package transform

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bep/golibsass/libsass"
)

func init() { Register("sass", newSass) }

type sassOptions struct {
	OutputStyle       string   `yaml:"output_style"`
	SourceMap         bool     `yaml:"source_map"`
	SourceMapContents bool     `yaml:"source_map_contents"`
	IncludePaths      []string `yaml:"include_paths"`
	Precision         int      `yaml:"precision"`
}

// sass compiles SCSS with libsass. Source maps are embedded in the CSS so
// later steps and the style bundler can chain them.
type sass struct {
	env  Env
	opts sassOptions
}

func newSass(env Env, decode func(any) error) (Transformer, error) {
	opts := sassOptions{OutputStyle: "expanded"}
	if err := decode(&opts); err != nil {
		return nil, err
	}
	for i, p := range opts.IncludePaths {
		if !filepath.IsAbs(p) {
			opts.IncludePaths[i] = filepath.Join(env.SourceRoot, filepath.FromSlash(p))
		}
	}
	return &sass{env: env, opts: opts}, nil
}

func (s *sass) Name() string { return "sass" }

func (s *sass) Transform(_ context.Context, a *Asset) error {
	style := s.opts.OutputStyle
	if s.env.Minify {
		style = "compressed"
	}
	options := libsass.Options{
		IncludePaths: append([]string{filepath.Dir(a.Path)}, s.opts.IncludePaths...),
		OutputStyle:  libsass.ParseOutputStyle(style),
		Precision:    s.opts.Precision,
		SassSyntax:   filepath.Ext(a.Path) == ".sass",
	}
	if s.opts.SourceMap && s.env.SourceMaps {
		options.SourceMapOptions = libsass.SourceMapOptions{
			InputPath:      a.Path,
			OutputPath:     strings.TrimSuffix(a.Path, filepath.Ext(a.Path)) + ".css",
			Contents:       s.opts.SourceMapContents,
			EnableEmbedded: true,
		}
	}

	t, err := libsass.New(options)
	if err != nil {
		return err
	}
	res, err := t.Execute(string(a.Contents))
	if err != nil {
		return err
	}
	a.Contents = []byte(res.CSS)
	return nil
}
