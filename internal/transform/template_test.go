package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPugRendersMarkup(t *testing.T) {
	p, err := New("pug", Env{}, nil)
	require.NoError(t, err)

	a := &Asset{
		Rel:      "templates/index.pug",
		Contents: []byte("doctype html\nhtml\n  body\n    h1 Hello\n"),
		Data:     map[string]any{},
	}
	require.NoError(t, p.Transform(context.Background(), a))

	out := string(a.Contents)
	require.Contains(t, strings.ToLower(out), "<!doctype html>")
	require.Contains(t, out, "<h1>Hello</h1>")
}

func TestPugSyntaxError(t *testing.T) {
	p, err := New("pug", Env{}, nil)
	require.NoError(t, err)

	err = p.Transform(context.Background(), &Asset{Rel: "bad.pug", Contents: []byte("html\n  body\n    p {{ .Broken \n")})
	require.Error(t, err)
}

func TestGoTemplateFuncs(t *testing.T) {
	g, err := New("gotmpl", Env{}, nil)
	require.NoError(t, err)

	a := &Asset{
		Rel: "index.html",
		Contents: []byte(`<link href="{{ asset "css/app.bundle.css" }}">` +
			`{{ markdown .Intro }}<pre>{{ json .Cfg }}</pre>`),
		Data: map[string]any{
			AssetsKey: map[string]string{"css/app.bundle.css": "/static/css/app.bundle.css"},
			"Intro":   "# Title",
			"Cfg":     map[string]int{"a": 1},
		},
	}
	require.NoError(t, g.Transform(context.Background(), a))

	out := string(a.Contents)
	require.Contains(t, out, `href="/static/css/app.bundle.css"`)
	require.Contains(t, out, "<h1>Title</h1>")
	require.Contains(t, out, `<pre>{&#34;a&#34;:1}</pre>`)
}

func TestAssetFuncUnknownName(t *testing.T) {
	g, err := New("gotmpl", Env{}, nil)
	require.NoError(t, err)

	err = g.Transform(context.Background(), &Asset{
		Rel:      "index.html",
		Contents: []byte(`{{ asset "missing.js" }}`),
		Data:     map[string]any{AssetsKey: map[string]string{"js/app.bundle.js": "js/app.bundle.js"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown asset "missing.js"`)
	require.Contains(t, err.Error(), "js/app.bundle.js")
}

func TestHTMLLoaderMinifiesOnlyWhenEnabled(t *testing.T) {
	src := "<html>\n  <body>\n    <p>  hi  </p>\n  </body>\n</html>\n"

	plain, err := New("html", Env{}, nil)
	require.NoError(t, err)
	a := &Asset{Rel: "index.html", Contents: []byte(src)}
	require.NoError(t, plain.Transform(context.Background(), a))
	require.Equal(t, src, string(a.Contents))

	min, err := New("html", Env{Minify: true}, nil)
	require.NoError(t, err)
	b := &Asset{Rel: "index.html", Contents: []byte(src)}
	require.NoError(t, min.Transform(context.Background(), b))
	require.Less(t, len(b.Contents), len(src))
	require.Contains(t, string(b.Contents), "<p>hi</p>")
}

func TestFileLoaderIsIdentity(t *testing.T) {
	f, err := New("file", Env{}, nil)
	require.NoError(t, err)
	a := &Asset{Contents: []byte{0x89, 'P', 'N', 'G'}}
	require.NoError(t, f.Transform(context.Background(), a))
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, a.Contents)
}
