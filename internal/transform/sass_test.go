//go:build cgo

package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSassCompilesWithPartials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_vars.scss"), []byte("$brand: #336699;\n"), 0o600))
	main := filepath.Join(dir, "main.scss")
	src := "@import 'vars';\n.btn { color: $brand; .icon { width: 1px; } }\n"
	require.NoError(t, os.WriteFile(main, []byte(src), 0o600))

	s, err := New("sass", Env{SourceRoot: dir}, nil)
	require.NoError(t, err)

	a := &Asset{Path: main, Rel: "main.scss", Contents: []byte(src)}
	require.NoError(t, s.Transform(context.Background(), a))

	out := string(a.Contents)
	require.Contains(t, out, "color: #336699")
	require.Contains(t, out, ".btn .icon")
}

func TestSassEmbedsSourceMap(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.scss")
	src := ".a { .b { color: red; } }\n"
	require.NoError(t, os.WriteFile(main, []byte(src), 0o600))

	s, err := New("sass", Env{SourceRoot: dir, SourceMaps: true}, func(v any) error {
		v.(*sassOptions).SourceMap = true
		return nil
	})
	require.NoError(t, err)

	a := &Asset{Path: main, Rel: "main.scss", Contents: []byte(src)}
	require.NoError(t, s.Transform(context.Background(), a))
	require.Contains(t, string(a.Contents), "sourceMappingURL=data:application/json")
}

func TestSassSyntaxError(t *testing.T) {
	s, err := New("sass", Env{}, nil)
	require.NoError(t, err)
	err = s.Transform(context.Background(), &Asset{Path: "/tmp/x.scss", Rel: "x.scss", Contents: []byte(".a { color: $missing; }")})
	require.Error(t, err)
}
