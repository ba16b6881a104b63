package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

func init() { Register("babel", newBabel) }

// babelOptions mirrors the babel-loader options that affect output.
type babelOptions struct {
	Presets []string `yaml:"presets"`
}

// babel downlevels modern script syntax. Module syntax is preserved so the
// bundler still sees imports.
type babel struct {
	env    Env
	target api.Target
}

func newBabel(env Env, decode func(any) error) (Transformer, error) {
	var opts babelOptions
	if err := decode(&opts); err != nil {
		return nil, err
	}
	target := api.ES2015
	for _, p := range opts.Presets {
		t, err := ParseTarget(p)
		if err != nil {
			return nil, err
		}
		target = t
	}
	return &babel{env: env, target: target}, nil
}

func (b *babel) Name() string { return "babel" }

func (b *babel) Transform(_ context.Context, a *Asset) error {
	res := api.Transform(string(a.Contents), api.TransformOptions{
		Loader:         ScriptLoader(a.Rel),
		Target:         b.target,
		Sourcefile:     a.Rel,
		Sourcemap:      sourceMapMode(b.env.SourceMaps),
		SourcesContent: api.SourcesContentInclude,
		LogLevel:       api.LogLevelSilent,
	})
	if err := MessagesError(res.Errors); err != nil {
		return err
	}
	a.Contents = res.Code
	return nil
}
