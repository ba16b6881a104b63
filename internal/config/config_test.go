package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// writeProject lays out the minimal source tree the default configuration expects.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"_develop/js/app.js":             "import '../scss/main.scss';\n",
		"_develop/scss/main.scss":        "body { color: red; }\n",
		"_develop/templates/index.pug":   "html\n  body\n",
		"_develop/images/logo.svg":       "<svg></svg>",
		"_develop/fonts/icons.woff2":     "font",
		"_develop/templates/partial.pug": "p hi\n",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func TestParseAppliesDefaults(t *testing.T) {
	root := writeProject(t)

	cfg, err := Parse([]byte("version: \"1\"\n"), root)
	require.NoError(t, err)

	require.Equal(t, root, cfg.Context)
	require.Equal(t, filepath.Join(root, "_develop"), cfg.SourceDir())
	require.Equal(t, filepath.Join(root, "_distribute"), cfg.OutputDir())
	require.Equal(t, filepath.Join(root, ".assetpipe"), cfg.ReportDir())
	require.Equal(t, "js/[name].bundle.js", cfg.Output.Filename)
	require.Equal(t, "css/[name].bundle.css", cfg.Styles.Filename)
	require.True(t, cfg.Styles.AllChunksEnabled())
	require.Equal(t, "app", cfg.Styles.DefaultChunk)
	require.Equal(t, 9001, cfg.DevServer.Port)
	require.False(t, cfg.DevServer.Compress)
	require.True(t, cfg.DevServer.ErrorsOnly())
	require.True(t, cfg.DevServer.LiveReloadEnabled())
	require.Equal(t, 300*time.Millisecond, cfg.Watch.AggregateTimeout)
	require.Equal(t, MinifyNever, cfg.Optimization.Minify)
	require.True(t, cfg.SourceMaps())

	var ruleNames []string
	for _, r := range cfg.Rules {
		ruleNames = append(ruleNames, r.Name)
	}
	if diff := cmp.Diff([]string{"styles", "scripts", "images", "html", "pug", "fonts"}, ruleNames); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}

	var pluginNames []string
	for _, p := range cfg.Plugins {
		pluginNames = append(pluginNames, p.Name)
	}
	if diff := cmp.Diff([]string{"clean", "copy", "imagemin", "html", "inline-svg"}, pluginNames); diff != "" {
		t.Errorf("plugin order mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleOptionsDecode(t *testing.T) {
	cfg := Default()

	var sass struct {
		OutputStyle       string `yaml:"output_style"`
		SourceMapContents bool   `yaml:"source_map_contents"`
	}
	require.NoError(t, cfg.Rules[0].DecodeOptions("sass", &sass))
	require.Equal(t, "expanded", sass.OutputStyle)
	require.True(t, sass.SourceMapContents)

	var css struct {
		URL *bool `yaml:"url"`
	}
	require.NoError(t, cfg.Rules[0].DecodeOptions("css", &css))
	require.NotNil(t, css.URL)
	require.False(t, *css.URL)

	var missing struct{ X string }
	require.NoError(t, cfg.Rules[0].DecodeOptions("postcss", &missing))
	require.Empty(t, missing.X)
}

func TestParseExpandsEnvironment(t *testing.T) {
	root := writeProject(t)
	t.Setenv("ASSETPIPE_TEST_PORT", "9123")

	cfg, err := Parse([]byte("dev_server:\n  port: ${ASSETPIPE_TEST_PORT}\n"), root)
	require.NoError(t, err)
	require.Equal(t, 9123, cfg.DevServer.Port)
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	root := writeProject(t)
	_, err := Parse([]byte("version: \"7\"\n"), root)
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))
}

func TestInitRoundTrip(t *testing.T) {
	root := writeProject(t)
	path := filepath.Join(root, DefaultFile)

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	require.Equal(t, def.Entry, cfg.Entry)
	require.Equal(t, def.Output, cfg.Output)
	require.Len(t, cfg.Rules, len(def.Rules))
	for i := range def.Rules {
		require.Equal(t, def.Rules[i].Test, cfg.Rules[i].Test)
		require.Equal(t, def.Rules[i].Use, cfg.Rules[i].Use)
		require.Equal(t, def.Rules[i].Output, cfg.Rules[i].Output)
	}

	var html struct {
		Filename string `yaml:"filename"`
		Inject   bool   `yaml:"inject"`
	}
	require.NoError(t, cfg.Plugins[cfg.PluginIndex("html")].Decode(&html))
	require.Equal(t, "index.html", html.Filename)
	require.False(t, html.Inject)
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("ASSETPIPE_TEST_A=fromfile\nASSETPIPE_TEST_B=fromfile\n"), 0o600))
	t.Setenv("ASSETPIPE_TEST_A", "fromenv")
	t.Setenv("ASSETPIPE_TEST_B", "")
	require.NoError(t, os.Unsetenv("ASSETPIPE_TEST_B"))

	loadEnvFile()

	require.Equal(t, "fromenv", os.Getenv("ASSETPIPE_TEST_A"))
	require.Equal(t, "fromfile", os.Getenv("ASSETPIPE_TEST_B"))
}
