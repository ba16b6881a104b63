package build

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

func testCompilation() *Compilation {
	cfg := config.Default()
	cfg.Context = "/project"
	cfg.Output.PublicPath = "/static/"
	return &Compilation{
		Config: &cfg,
		assets: map[string]*Asset{},
		chunks: map[string]*Chunk{},
	}
}

func TestCompilationAddRejectsConflicts(t *testing.T) {
	c := testCompilation()
	require.NoError(t, c.Add(&Asset{Path: "/images/a.png", Source: "images/a.png", Class: ClassFile}))
	err := c.Add(&Asset{Path: "images/a.png", Source: "other/a.png", Class: ClassFile})
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryBuild))

	c.Put(&Asset{Path: "images/a.png", Class: ClassCopy})
	a, ok := c.Get("images/a.png")
	require.True(t, ok)
	require.Equal(t, ClassCopy, a.Class)

	c.Remove("images/a.png")
	require.Empty(t, c.Paths())
}

func TestCompilationOrderingAndChunks(t *testing.T) {
	c := testCompilation()
	require.NoError(t, c.Add(&Asset{Path: "js/b.js", Class: ClassScript, Chunk: "b"}))
	require.NoError(t, c.Add(&Asset{Path: "css/a.css", Class: ClassStyle, Chunk: "a"}))
	require.NoError(t, c.Add(&Asset{Path: "js/a.js", Class: ClassScript, Chunk: "a"}))

	require.Equal(t, []string{"css/a.css", "js/a.js", "js/b.js"}, c.Paths())
	chunks := c.Chunks()
	require.Len(t, chunks, 2)
	require.Equal(t, Chunk{Name: "a", Scripts: []string{"js/a.js"}, Styles: []string{"css/a.css"}}, chunks[0])
	require.Len(t, c.AssetsOf(ClassScript), 2)
}

func TestCompilationTemplateData(t *testing.T) {
	c := testCompilation()
	require.NoError(t, c.Add(&Asset{Path: "js/app.js", Class: ClassScript, Chunk: "app", Source: "js/app.js"}))
	require.NoError(t, c.Add(&Asset{Path: "fonts/x.woff", Class: ClassFile, Source: "fonts/x.woff", PublicURL: "../fonts/x.woff"}))

	data := c.TemplateData()
	assets := data[transform.AssetsKey].(map[string]string)
	require.Equal(t, "/static/js/app.js", assets["js/app.js"])
	require.Equal(t, "../fonts/x.woff", assets["fonts/x.woff"])

	chunks := data["Chunks"].(map[string]map[string][]string)
	require.Equal(t, []string{"/static/js/app.js"}, chunks["app"]["Scripts"])
	require.Empty(t, chunks["app"]["Styles"])
}

func TestManifestIsStable(t *testing.T) {
	c := testCompilation()
	require.NoError(t, c.Add(&Asset{Path: "js/app.js", Class: ClassScript, Chunk: "app", Source: "js/app.js"}))
	require.NoError(t, c.Add(&Asset{Path: "js/app.js.map", Class: ClassMap, Chunk: "app"}))
	a, err := BuildManifest(c).Marshal()
	require.NoError(t, err)
	b, err := BuildManifest(c).Marshal()
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
	require.Contains(t, string(a), `"js/app.js": "/static/js/app.js"`)
}
