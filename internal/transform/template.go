package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"

	"github.com/Joker/jade"
	"github.com/yuin/goldmark"
)

func init() {
	Register("pug", func(env Env, decode func(any) error) (Transformer, error) {
		return &templateLoader{name: "pug", compile: compilePug}, nil
	})
	Register("gotmpl", func(env Env, decode func(any) error) (Transformer, error) {
		return &templateLoader{name: "gotmpl", compile: func(_ string, b []byte) (string, error) { return string(b), nil }}, nil
	})
}

// AssetsKey is the data key holding the output name -> public URL map used by
// the asset template function.
const AssetsKey = "Assets"

// templateLoader renders a document to markup with html/template. compile
// turns the source dialect into Go template text.
type templateLoader struct {
	name    string
	compile func(name string, src []byte) (string, error)
}

func compilePug(name string, src []byte) (string, error) {
	return jade.Parse(name, src)
}

func (t *templateLoader) Name() string { return t.name }

func (t *templateLoader) Transform(ctx context.Context, a *Asset) error {
	text, err := t.compile(a.Rel, a.Contents)
	if err != nil {
		return err
	}
	tpl, err := template.New(a.Rel).Funcs(Funcs(a.Data)).Parse(text)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, a.Data); err != nil {
		return err
	}
	a.Contents = buf.Bytes()
	return nil
}

// Funcs returns the template functions bound to data.
func Funcs(data map[string]any) template.FuncMap {
	md := goldmark.New()
	return template.FuncMap{
		"asset": func(name string) (string, error) {
			assets, _ := data[AssetsKey].(map[string]string)
			if url, ok := assets[name]; ok {
				return url, nil
			}
			known := make([]string, 0, len(assets))
			for k := range assets {
				known = append(known, k)
			}
			sort.Strings(known)
			return "", fmt.Errorf("unknown asset %q (known: %v)", name, known)
		},
		"markdown": func(src string) (template.HTML, error) {
			var buf bytes.Buffer
			if err := md.Convert([]byte(src), &buf); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil //nolint:gosec // markdown authored in the source tree
		},
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}
}
