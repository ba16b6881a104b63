package bundle

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

func optionNode(t *testing.T, v any) yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, n.Encode(v))
	return n
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

// fixture builds Options over a source tree with a babel script rule
// (vendor excluded) and a plain css style rule with url() resolution off.
func fixture(t *testing.T, files map[string]string, sourceMaps bool) Options {
	t.Helper()
	project := t.TempDir()
	src := filepath.Join(project, "src")
	writeFiles(t, src, files)

	ruleCfgs := []config.RuleConfig{
		{
			Name:    "scripts",
			Test:    `\.js$`,
			Exclude: `vendor`,
			Type:    config.RuleScript,
			Use:     []string{"babel"},
			Options: map[string]yaml.Node{"babel": optionNode(t, map[string]any{"presets": []string{"es2015"}})},
		},
		{
			Name:    "styles",
			Test:    `\.css$`,
			Type:    config.RuleStyle,
			Use:     []string{"css"},
			Options: map[string]yaml.Node{"css": optionNode(t, map[string]any{"url": false})},
		},
	}
	router, err := rules.Compile(ruleCfgs)
	require.NoError(t, err)

	env := transform.Env{SourceRoot: src, SourceMaps: sourceMaps}
	chains := map[int]*transform.Chain{}
	for i, rc := range ruleCfgs {
		c, err := transform.NewChain(env, rc)
		require.NoError(t, err)
		chains[i] = c
	}
	return Options{
		SourceRoot: src,
		OutputRoot: filepath.Join(project, "dist"),
		SourceMaps: sourceMaps,
		Router:     router,
		Chains:     chains,
	}
}

var scriptTree = map[string]string{
	"js/app.js": "import { greet } from './util.js';\n" +
		"import '../css/a.css';\n" +
		"import { v } from '../vendor/lib.js';\n" +
		"const q = globalThis.q;\n" +
		"console.log(greet(q ?? \"app\"), v);\n",
	"js/util.js":    "import '../css/b.css';\nexport const greet = (n) => 'hi ' + n;\n",
	"js/admin.js":   "import '../css/b.css';\nconsole.log('admin');\n",
	"vendor/lib.js": "const a = globalThis.a;\nexport const v = a ?? \"vendor\";\n",
	"css/a.css":     ".a { background: url(../images/bg.png); }\n",
	"css/b.css":     ".b { color: red; }\n",
}

func TestScriptsBundlesEachEntry(t *testing.T) {
	opts := fixture(t, scriptTree, false)

	res, err := Scripts(context.Background(), opts, map[string]string{
		"app":   "js/app.js",
		"admin": "js/admin.js",
	}, "js/[name].bundle.js")
	require.NoError(t, err)

	require.Len(t, res.Bundles, 2)
	require.Equal(t, "js/admin.bundle.js", res.Bundles[0].Path)
	require.Equal(t, "js/app.bundle.js", res.Bundles[1].Path)
	require.Equal(t, ClassScript, res.Bundles[1].Class)
	require.Nil(t, res.Bundles[1].Map)

	app := string(res.Bundles[1].Contents)
	require.NotContains(t, app, `?? "app"`, "entry code is downleveled")
	require.Contains(t, app, `?? "vendor"`, "excluded paths are bundled untranspiled")
	require.NotContains(t, app, ".a {", "stylesheets are extracted, not inlined")

	require.Equal(t, []string{"css/b.css", "css/a.css"}, res.Styles["app"])
	require.Equal(t, []string{"css/b.css"}, res.Styles["admin"])
	require.Contains(t, res.Bundles[1].Sources, "js/util.js")
}

func TestScriptsSourceMapsAndHashedNames(t *testing.T) {
	opts := fixture(t, scriptTree, true)

	res, err := Scripts(context.Background(), opts, map[string]string{"app": "js/app.js"}, "js/[name].[contenthash:8].js")
	require.NoError(t, err)
	require.Len(t, res.Bundles, 1)

	b := res.Bundles[0]
	require.Regexp(t, regexp.MustCompile(`^js/app\.[0-9a-f]{8}\.js$`), b.Path)
	require.NotEmpty(t, b.Map)
	require.True(t, strings.HasSuffix(string(b.Contents), "//# sourceMappingURL="+filepath.Base(b.Path)+".map\n"))
	require.Equal(t, b.Path+".map", b.MapPath())
}

func TestScriptsReportsTransformFailure(t *testing.T) {
	tree := map[string]string{
		"js/app.js":  "import './util.js';\n",
		"js/util.js": "export const = ;\n",
	}
	opts := fixture(t, tree, false)

	_, err := Scripts(context.Background(), opts, map[string]string{"app": "js/app.js"}, "js/[name].bundle.js")
	require.Error(t, err)
	ce, ok := foundationerrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, foundationerrors.CategoryTransform, ce.Category())
	file, _ := ce.Context().GetString("file")
	require.Equal(t, "js/util.js", file)
}

func TestScriptsMissingImport(t *testing.T) {
	opts := fixture(t, map[string]string{"js/app.js": "import './nope.js';\n"}, false)

	_, err := Scripts(context.Background(), opts, map[string]string{"app": "js/app.js"}, "js/[name].bundle.js")
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryTransform))
	require.Contains(t, err.Error(), "nope.js")
}

func TestStylesAggregatesChunks(t *testing.T) {
	opts := fixture(t, scriptTree, true)

	outs, err := Styles(context.Background(), opts, map[string][]string{
		"app": {"css/a.css", "css/b.css"},
	}, "css/[name].bundle.css")
	require.NoError(t, err)
	require.Len(t, outs, 1)

	css := outs[0]
	require.Equal(t, "css/app.bundle.css", css.Path)
	require.Equal(t, ClassStyle, css.Class)
	require.Equal(t, []string{"css/a.css", "css/b.css"}, css.Sources)
	require.NotEmpty(t, css.Map)

	body := string(css.Contents)
	require.Less(t, strings.Index(body, ".a"), strings.Index(body, ".b"), "member order is preserved")
	require.Contains(t, body, "url(../images/bg.png)")
	require.NotContains(t, body, chunkNamespace, "the virtual chunk entry leaves no trace")
	require.True(t, strings.HasSuffix(body, "/*# sourceMappingURL=app.bundle.css.map */\n"))
}

func TestStripChunkComment(t *testing.T) {
	in := []byte("/* css/a.css */\n.a {\n}\n\n/* assetpipe-chunk:app */\n")
	require.Equal(t, "/* css/a.css */\n.a {\n}\n", string(stripChunkComment(in)))
	require.Equal(t, ".b{}", string(stripChunkComment([]byte(".b{}"))))
}

func TestStylesWithoutMatchingRule(t *testing.T) {
	opts := fixture(t, map[string]string{"css/c.scss": ".c{}"}, false)

	_, err := Styles(context.Background(), opts, map[string][]string{"app": {"css/c.scss"}}, "css/[name].bundle.css")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no style rule matches css/c.scss")
}

func TestStylesEmpty(t *testing.T) {
	outs, err := Styles(context.Background(), Options{}, nil, "css/[name].css")
	require.NoError(t, err)
	require.Empty(t, outs)
}
