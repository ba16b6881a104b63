package plugins

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func init() { build.RegisterPlugin("inline-svg", newInlineSVG) }

type svgoOptions struct {
	RemoveTitle   bool `yaml:"remove_title"`
	RemoveViewBox bool `yaml:"remove_view_box"`
}

type inlineSVGOptions struct {
	SVGO svgoOptions `yaml:"svgo"`
}

// inlineSVG replaces <img inline src="x.svg"> in emitted pages with the SVG
// markup, carrying over the image's class and id.
type inlineSVG struct {
	opts inlineSVGOptions
}

func newInlineSVG(_ *config.Config, _ config.Options, pc config.PluginConfig) (build.Plugin, error) {
	var opts inlineSVGOptions
	if err := pc.Decode(&opts); err != nil {
		return nil, err
	}
	return &inlineSVG{opts: opts}, nil
}

func (s *inlineSVG) Name() string { return "inline-svg" }

func (s *inlineSVG) Apply(ctx context.Context, comp *build.Compilation) error {
	for _, a := range comp.Assets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path.Ext(a.Path) != ".html" {
			continue
		}
		out, changed, err := s.rewrite(a, comp)
		if err != nil {
			return err
		}
		if changed {
			a.Contents = out
		}
	}
	return nil
}

func (s *inlineSVG) rewrite(page *build.Asset, comp *build.Compilation) ([]byte, bool, error) {
	if !bytes.Contains(page.Contents, []byte("inline")) {
		return nil, false, nil
	}
	doc, err := html.Parse(bytes.NewReader(page.Contents))
	if err != nil {
		return nil, false, foundationerrors.WrapError(err, foundationerrors.CategoryPlugin, "cannot parse page").
			WithContext("plugin", "inline-svg").
			WithContext("path", page.Path).
			Build()
	}

	var imgs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if _, ok := getAttr(n, "inline"); ok {
				if src, _ := getAttr(n, "src"); strings.HasSuffix(strings.ToLower(src), ".svg") {
					imgs = append(imgs, n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(imgs) == 0 {
		return nil, false, nil
	}

	for _, img := range imgs {
		src, _ := getAttr(img, "src")
		data, err := s.load(src, page, comp)
		if err != nil {
			return nil, false, foundationerrors.WrapError(err, foundationerrors.CategoryPlugin, "cannot inline svg").
				WithContext("plugin", "inline-svg").
				WithContext("path", page.Path).
				WithContext("file", src).
				Build()
		}
		svg, err := parseSVG(data, img.Parent)
		if err != nil {
			return nil, false, foundationerrors.WrapError(err, foundationerrors.CategoryPlugin, "invalid svg").
				WithContext("plugin", "inline-svg").
				WithContext("file", src).
				Build()
		}
		s.optimize(svg)
		for _, key := range []string{"class", "id"} {
			if v, ok := getAttr(img, key); ok {
				setAttr(svg, key, v)
			}
		}
		img.Parent.InsertBefore(svg, img)
		img.Parent.RemoveChild(img)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// load finds the svg among emitted assets first, then in the source tree.
// src is resolved against the page's directory unless it is rooted.
func (s *inlineSVG) load(src string, page *build.Asset, comp *build.Compilation) ([]byte, error) {
	clean := strings.TrimPrefix(src, comp.Config.Output.PublicPath)
	var candidates []string
	if strings.HasPrefix(clean, "/") {
		candidates = append(candidates, path.Clean(clean))
	} else {
		candidates = append(candidates, path.Join(path.Dir(page.Path), clean), path.Clean(clean))
	}
	for _, c := range candidates {
		if a, ok := comp.Get(c); ok {
			return a.Contents, nil
		}
	}
	if page.Source != "" {
		candidates = append([]string{path.Join(path.Dir(page.Source), clean)}, candidates...)
	}
	for _, c := range candidates {
		if data, err := os.ReadFile(comp.SourcePath(strings.TrimPrefix(c, "/"))); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("svg %q not found", src)
}

func parseSVG(data []byte, parent *html.Node) (*html.Node, error) {
	if parent == nil || parent.Type != html.ElementNode {
		parent = &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	}
	nodes, err := html.ParseFragment(bytes.NewReader(data), parent)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if svg := findElement(n, atom.Svg); svg != nil {
			if svg.Parent != nil {
				svg.Parent.RemoveChild(svg)
			}
			return svg, nil
		}
	}
	return nil, fmt.Errorf("no <svg> element")
}

// optimize applies the svgo flags the plugin understands.
func (s *inlineSVG) optimize(svg *html.Node) {
	if s.opts.SVGO.RemoveTitle {
		for c := svg.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode && c.Data == "title" {
				svg.RemoveChild(c)
			}
			c = next
		}
	}
	if s.opts.SVGO.RemoveViewBox {
		vb, ok := getAttr(svg, "viewBox")
		w, wok := getAttr(svg, "width")
		h, hok := getAttr(svg, "height")
		if ok && wok && hok && strings.Join(strings.Fields(vb), " ") == "0 0 "+strings.TrimSuffix(w, "px")+" "+strings.TrimSuffix(h, "px") {
			removeAttr(svg, "viewBox")
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}
