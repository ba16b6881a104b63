package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

func init() { Register("postcss", newPostCSS) }

type postcssOptions struct {
	Browsers []string `yaml:"browsers"`
}

// postcss lowers modern CSS (nesting, color functions, vendor prefixes)
// for the configured browser list.
type postcss struct {
	env     Env
	engines []api.Engine
}

func newPostCSS(env Env, decode func(any) error) (Transformer, error) {
	var opts postcssOptions
	if err := decode(&opts); err != nil {
		return nil, err
	}
	engines, err := ParseEngines(opts.Browsers)
	if err != nil {
		return nil, err
	}
	return &postcss{env: env, engines: engines}, nil
}

func (p *postcss) Name() string { return "postcss" }

func (p *postcss) Transform(_ context.Context, a *Asset) error {
	res := api.Transform(string(a.Contents), api.TransformOptions{
		Loader:         api.LoaderCSS,
		Engines:        p.engines,
		Sourcefile:     a.Rel,
		Sourcemap:      sourceMapMode(p.env.SourceMaps),
		SourcesContent: api.SourcesContentInclude,
		LogLevel:       api.LogLevelSilent,
	})
	if err := MessagesError(res.Errors); err != nil {
		return err
	}
	a.Contents = res.Code
	return nil
}
