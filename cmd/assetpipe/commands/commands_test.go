package commands

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

const testConfig = `
version: "1"
source: src
devtool: none
entry:
  app: js/app.js
output:
  path: dist
  filename: js/[name].bundle.js
  manifest: manifest.json
rules:
  - name: scripts
    test: '\.js$'
    type: script
    use: [babel]
  - name: styles
    test: '\.css$'
    type: style
    use: [css]
  - name: legacy
    test: '\.js$'
    type: script
    use: [babel]
  - name: fonts
    test: '\.woff2$'
    type: file
    use: [file]
styles:
  filename: css/[name].bundle.css
plugins: []
report:
  disable: true
`

func newTestProject(t *testing.T) (*CLI, *Global, *bytes.Buffer) {
	t.Helper()
	project := t.TempDir()
	for rel, content := range map[string]string{
		"assetpipe.yaml":  testConfig,
		"src/js/app.js":   "import '../css/app.css';\nconsole.log('app');\n",
		"src/css/app.css": ".app { color: red; }\n",
		"src/README.txt":  "unrouted\n",
	} {
		p := filepath.Join(project, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	var out bytes.Buffer
	g := &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Out: &out}
	return &CLI{Config: filepath.Join(project, "assetpipe.yaml")}, g, &out
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	var out bytes.Buffer
	g := &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Out: &out}
	root := &CLI{Config: path}

	require.NoError(t, (&InitCmd{}).Run(g, root))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "source: _develop")

	err = (&InitCmd{}).Run(g, root)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))
	require.NoError(t, (&InitCmd{Force: true}).Run(g, root))
}

func TestBuildCommandWritesOutput(t *testing.T) {
	root, g, out := newTestProject(t)
	require.NoError(t, (&BuildCmd{}).Run(g, root))
	require.Contains(t, out.String(), "outcome=success")

	dist := filepath.Join(filepath.Dir(root.Config), "dist")
	for _, p := range []string{"js/app.bundle.js", "css/app.bundle.css", "manifest.json"} {
		_, err := os.Stat(filepath.Join(dist, filepath.FromSlash(p)))
		require.NoError(t, err, p)
	}
}

func TestBuildCommandMissingConfig(t *testing.T) {
	var out bytes.Buffer
	g := &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Out: &out}
	err := (&BuildCmd{}).Run(g, &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestRulesCommandReportsRouting(t *testing.T) {
	root, g, out := newTestProject(t)
	require.NoError(t, (&RulesCmd{Overlaps: true}).Run(g, root))

	text := out.String()
	require.Contains(t, text, "js/app.js")
	require.Contains(t, text, "also legacy")
	require.Contains(t, text, "README.txt")
	require.Contains(t, text, "(unmatched)")
	require.Contains(t, text, "shadowed: #2 legacy")
	require.Contains(t, text, "unused: #3 fonts")
}

func TestVerifyCommandDetectsDrift(t *testing.T) {
	root, g, out := newTestProject(t)
	require.NoError(t, (&BuildCmd{}).Run(g, root))

	out.Reset()
	require.NoError(t, (&VerifyCmd{Context: 3}).Run(g, root))

	css := filepath.Join(filepath.Dir(root.Config), "dist", "css", "app.bundle.css")
	require.NoError(t, os.WriteFile(css, []byte(".tampered {}\n"), 0o600))

	out.Reset()
	err := (&VerifyCmd{Context: 3}).Run(g, root)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryBuild))
	require.Contains(t, out.String(), "css/app.bundle.css")
	require.Contains(t, out.String(), "-.tampered {}")
}

func TestVerifyTwiceIsClean(t *testing.T) {
	root, g, _ := newTestProject(t)
	require.NoError(t, (&VerifyCmd{Twice: true, Context: 3}).Run(g, root))
}

func TestPackageCommandBuildsAndArchives(t *testing.T) {
	root, g, out := newTestProject(t)
	dest := filepath.Join(t.TempDir(), "site.tar.gz")

	require.NoError(t, (&PackageCmd{Output: dest, Build: true}).Run(g, root))
	require.Contains(t, out.String(), "Packed ")
	require.Contains(t, out.String(), dest)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestPackageCommandWithoutOutputFails(t *testing.T) {
	root, g, _ := newTestProject(t)
	err := (&PackageCmd{}).Run(g, root)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("ASSETPIPE_LOG_LEVEL", "warn")
	require.Equal(t, slog.LevelWarn, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true))
	t.Setenv("ASSETPIPE_LOG_LEVEL", "")
	require.Equal(t, slog.LevelInfo, parseLogLevel(false))
}
