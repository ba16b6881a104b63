package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

func init() { Register("css", newCSS) }

type cssOptions struct {
	URL *bool `yaml:"url"`
	// SourceMap switches maps off for this loader when false; unset follows devtool.
	SourceMap *bool `yaml:"source_map"`
}

// CSS validates and normalizes a stylesheet. With url disabled, url()
// references are left exactly as written.
type CSS struct {
	urls bool
	maps bool
}

func newCSS(env Env, decode func(any) error) (Transformer, error) {
	var opts cssOptions
	if err := decode(&opts); err != nil {
		return nil, err
	}
	return &CSS{
		urls: opts.URL == nil || *opts.URL,
		maps: env.SourceMaps && (opts.SourceMap == nil || *opts.SourceMap),
	}, nil
}

func (c *CSS) Name() string { return "css" }

// ResolveURLs reports whether url() references are resolved as dependencies.
func (c *CSS) ResolveURLs() bool { return c.urls }

func (c *CSS) Transform(_ context.Context, a *Asset) error {
	res := api.Transform(string(a.Contents), api.TransformOptions{
		Loader:         api.LoaderCSS,
		Sourcefile:     a.Rel,
		Sourcemap:      sourceMapMode(c.maps),
		SourcesContent: api.SourcesContentInclude,
		LogLevel:       api.LogLevelSilent,
	})
	if err := MessagesError(res.Errors); err != nil {
		return err
	}
	a.Contents = res.Code
	return nil
}
