package plugins

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

const siteConfig = `
version: "1"
source: src
entry:
  app: js/app.js
output:
  path: dist
  filename: js/[name].bundle.js
rules:
  - name: scripts
    test: '\.js$'
    type: script
    use: [babel]
  - name: styles
    test: '\.css$'
    type: style
    use: [css]
  - name: images
    test: '\.(png|svg)$'
    include: [images/]
    type: file
    use: [file]
    output: {name: '[name].[ext]', path: images/}
  - name: pages
    test: '\.tmpl$'
    type: template
    use: [html, gotmpl]
styles:
  filename: css/[name].bundle.css
plugins:
  - name: clean
    options: {paths: [public]}
  - name: copy
    options:
      patterns:
        - {from: static, to: static}
  - name: imagemin
    options:
      test: '\.png$'
      disable: IMAGEMIN_DISABLE
  - name: html
    options:
      filename: index.html
      template: templates/index.tmpl
      inject: true
  - name: inline-svg
    options:
      svgo: {remove_title: true, remove_view_box: true}
report:
  disable: true
`

const pageTemplate = `<!DOCTYPE html>
<html><head><title>{{ .Mode }}</title></head>
<body><img inline class="logo" id="brand" src="images/logo.svg" alt="x"><p>{{ asset "images/logo.png" }}</p></body></html>
`

const logoSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10"><title>Logo</title><rect width="10" height="10"></rect></svg>`

func uncompressedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, img))
	return buf.Bytes()
}

type site struct {
	cfg *config.Config
	png []byte
}

func newSite(t *testing.T, imageminDisable string) site {
	t.Helper()
	project := t.TempDir()
	pngData := uncompressedPNG(t)
	files := map[string][]byte{
		"src/js/app.js":               []byte("import '../css/app.css';\nconsole.log('app');\n"),
		"src/css/app.css":             []byte(".app { color: red; }\n"),
		"src/templates/index.tmpl":    []byte(pageTemplate),
		"src/images/logo.svg":         []byte(logoSVG),
		"src/images/logo.png":         pngData,
		"src/static/robots.txt":       []byte("User-agent: *\n"),
		"src/static/.hidden":          []byte("secret\n"),
		"public/stale.html":           []byte("old\n"),
	}
	for rel, data := range files {
		p := filepath.Join(project, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, data, 0o600))
	}
	yamlText := strings.Replace(siteConfig, "IMAGEMIN_DISABLE", imageminDisable, 1)
	cfg, err := config.Parse([]byte(yamlText), project)
	require.NoError(t, err)
	return site{cfg: cfg, png: pngData}
}

func (s site) build(t *testing.T, production bool) (*build.Report, error) {
	t.Helper()
	b, err := build.New(config.Options{Mode: config.ModeBuild, Production: production, Config: s.cfg})
	require.NoError(t, err)
	return b.Build(context.Background())
}

func (s site) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.cfg.OutputDir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestPluginsAssembleSite(t *testing.T) {
	s := newSite(t, "false")
	report, err := s.build(t, false)
	require.NoError(t, err)
	require.Equal(t, []string{"clean", "copy", "imagemin", "html", "inline-svg"}, report.Plugins)

	page := s.read(t, "index.html")
	require.Contains(t, page, `<title>build</title>`)
	require.Contains(t, page, `<p>images/logo.png</p>`)
	require.Contains(t, page, `href="css/app.bundle.css"`)
	require.Contains(t, page, `<script src="js/app.bundle.js"></script>`)

	require.NotContains(t, page, "<img")
	require.Contains(t, page, `<svg`)
	require.Contains(t, page, `class="logo"`)
	require.Contains(t, page, `id="brand"`)
	require.NotContains(t, page, "Logo", "svg title removed")
	require.NotContains(t, page, "viewBox", "redundant viewBox removed")

	require.Equal(t, "User-agent: *\n", s.read(t, "static/robots.txt"))
	_, err = os.Stat(filepath.Join(s.cfg.OutputDir(), "static", ".hidden"))
	require.True(t, os.IsNotExist(err))

	require.Less(t, len(s.read(t, "images/logo.png")), len(s.png))

	_, err = os.Stat(filepath.Join(s.cfg.Context, "public"))
	require.True(t, os.IsNotExist(err), "clean paths are removed")
}

func TestImageminDisabledOutsideProductionByDefault(t *testing.T) {
	s := newSite(t, "null")
	_, err := s.build(t, false)
	require.NoError(t, err)
	require.Equal(t, string(s.png), s.read(t, "images/logo.png"))

	_, err = s.build(t, true)
	require.NoError(t, err)
	require.Less(t, len(s.read(t, "images/logo.png")), len(s.png))
}

func TestCopyMissingSourceIsWarning(t *testing.T) {
	s := newSite(t, "true")
	require.NoError(t, os.RemoveAll(filepath.Join(s.cfg.SourceDir(), "static")))

	report, err := s.build(t, false)
	require.NoError(t, err)
	require.Equal(t, build.OutcomeWarning, report.Outcome)
	require.Len(t, report.Warnings, 1)
	require.Contains(t, report.Warnings[0].Error(), "copy source not found")
}

func TestInlineSVGMissingFileFailsBuild(t *testing.T) {
	s := newSite(t, "true")
	require.NoError(t, os.Remove(filepath.Join(s.cfg.SourceDir(), "images", "logo.svg")))

	_, err := s.build(t, false)
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryPlugin))
	require.Contains(t, err.Error(), "cannot inline svg")
}

func TestCleanRejectsPathsOutsideProject(t *testing.T) {
	cfg := config.Default()
	cfg.Context = t.TempDir()

	for _, p := range []string{"../elsewhere", "_develop", "_distribute/css", ".", ".assetpipe"} {
		var pc config.PluginConfig
		pc.Name = "clean"
		require.NoError(t, pc.Options.Encode(map[string]any{"paths": []string{p}}))
		_, err := newClean(&cfg, config.Options{}, pc)
		require.Error(t, err, p)
		require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))
	}
}

func TestHTMLPluginRequiresTemplateRule(t *testing.T) {
	s := newSite(t, "true")
	tpl := filepath.Join(s.cfg.SourceDir(), "templates", "index.tmpl")
	require.NoError(t, os.Rename(tpl, filepath.Join(s.cfg.SourceDir(), "templates", "index.page")))
	require.NoError(t, os.WriteFile(tpl, []byte(pageTemplate), 0o600))

	for i, p := range s.cfg.Plugins {
		if p.Name == "html" {
			require.NoError(t, s.cfg.Plugins[i].Options.Encode(map[string]any{"template": "templates/index.page"}))
		}
	}
	_, err := s.build(t, false)
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
}
