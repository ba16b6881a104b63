package plugins

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

func init() { build.RegisterPlugin("html", newHTMLPage) }

type htmlPageOptions struct {
	Filename string `yaml:"filename"`
	Template string `yaml:"template"`
	Inject   bool   `yaml:"inject"`
	// Chunks limits injected bundles; empty injects all.
	Chunks []string `yaml:"chunks"`
}

// htmlPage renders one page from a template through the template's rule
// chain. Bundle references are available to the template as .Chunks and
// through the asset function; with inject they are also added as tags.
type htmlPage struct {
	opts htmlPageOptions
}

func newHTMLPage(_ *config.Config, _ config.Options, pc config.PluginConfig) (build.Plugin, error) {
	opts := htmlPageOptions{Filename: "index.html"}
	if err := pc.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.Template == "" {
		return nil, foundationerrors.ValidationError("html plugin requires a template").WithContext("plugin", "html").Build()
	}
	opts.Template = path.Clean(filepath.ToSlash(opts.Template))
	return &htmlPage{opts: opts}, nil
}

func (h *htmlPage) Name() string { return "html" }

func (h *htmlPage) Apply(ctx context.Context, comp *build.Compilation) error {
	rel := h.opts.Template
	rule, chain := comp.ChainFor(rel)
	if rule == nil || rule.Type() != config.RuleTemplate {
		return foundationerrors.ConfigError("no template rule matches the html plugin template").
			WithContext("plugin", "html").
			WithContext("file", rel).
			Build()
	}
	abs := comp.SourcePath(rel)
	src, err := os.ReadFile(abs)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read html template").
			WithContext("plugin", "html").
			WithContext("file", rel).
			Build()
	}
	asset := &transform.Asset{Path: abs, Rel: rel, Contents: src, Data: comp.TemplateData()}
	if err := chain.Apply(ctx, asset); err != nil {
		return err
	}
	out := asset.Contents
	if h.opts.Inject {
		out, err = h.inject(out, comp)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryPlugin, "cannot inject bundle references").
				WithContext("plugin", "html").
				Build()
		}
	}
	comp.Put(&build.Asset{Path: h.opts.Filename, Contents: out, Class: build.ClassHTML, Source: rel})
	return nil
}

// inject appends a stylesheet link per style bundle to <head> and a script
// tag per script bundle to the end of <body>, in chunk name order.
func (h *htmlPage) inject(page []byte, comp *build.Compilation) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		return page, nil
	}
	allowed := map[string]bool{}
	for _, c := range h.opts.Chunks {
		allowed[c] = true
	}
	for _, ch := range comp.Chunks() {
		if len(allowed) > 0 && !allowed[ch.Name] {
			continue
		}
		for _, p := range ch.Styles {
			head.AppendChild(element(atom.Link, "rel", "stylesheet", "href", comp.PublicURL(p)))
		}
		for _, p := range ch.Scripts {
			body.AppendChild(element(atom.Script, "src", comp.PublicURL(p)))
		}
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
