package transform

import (
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

func init() { Register("html", newHTML) }

type htmlOptions struct {
	Minimize *bool `yaml:"minimize"`
}

// htmlLoader passes markup through and minifies it when minification is on.
type htmlLoader struct {
	minify bool
	m      *minify.M
}

func newHTML(env Env, decode func(any) error) (Transformer, error) {
	var opts htmlOptions
	if err := decode(&opts); err != nil {
		return nil, err
	}
	on := env.Minify
	if opts.Minimize != nil {
		on = *opts.Minimize
	}
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &htmlLoader{minify: on, m: m}, nil
}

func (h *htmlLoader) Name() string { return "html" }

func (h *htmlLoader) Transform(_ context.Context, a *Asset) error {
	if !h.minify {
		return nil
	}
	out, err := h.m.Bytes("text/html", a.Contents)
	if err != nil {
		return err
	}
	a.Contents = out
	return nil
}
