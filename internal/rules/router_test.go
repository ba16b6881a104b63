package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

func defaultRouter(t *testing.T) *Router {
	t.Helper()
	r, err := Compile(config.Default().Rules)
	require.NoError(t, err)
	return r
}

func TestMatchDefaultRules(t *testing.T) {
	r := defaultRouter(t)

	tests := []struct {
		rel  string
		want string // rule name, "" for unmatched
	}{
		{"scss/main.scss", "styles"},
		{"js/app.js", "scripts"},
		{"node_modules/lib/index.js", ""},
		{"images/logo.png", "images"},
		{"images/icons/arrow.svg", "images"},
		{"fonts/icons.svg", "fonts"},
		{"fonts/icons.woff2", "fonts"},
		{"index.html", "html"},
		{"templates/index.pug", "pug"},
		{"README.md", ""},
		{"misc/logo.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got := r.Match(tt.rel)
			if tt.want == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.want, got.Name())
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	r, err := Compile([]config.RuleConfig{
		{Name: "svg-inline", Test: `\.svg$`, Include: []string{"icons"}, Type: config.RuleTemplate, Use: []string{"html"}},
		{Name: "any-image", Test: `\.(png|svg)$`, Type: config.RuleFile, Use: []string{"file"}},
		{Name: "never", Test: `\.svg$`, Type: config.RuleFile, Use: []string{"file"}},
		{Name: "unused", Test: `\.webp$`, Type: config.RuleFile, Use: []string{"file"}},
	})
	require.NoError(t, err)

	require.Equal(t, "svg-inline", r.Match("icons/a.svg").Name())
	require.Equal(t, "any-image", r.Match("img/a.svg").Name())

	a := r.Analyze([]string{"icons/a.svg", "img/a.svg", "img/b.png", "notes.txt"})
	require.Len(t, a.Assignments, 3)
	require.Equal(t, []string{"notes.txt"}, a.Unmatched)

	require.Len(t, a.Assignments[0].Overlaps, 2)
	require.Equal(t, "any-image", a.Assignments[0].Overlaps[0].Name())

	require.Len(t, a.Shadowed, 1)
	require.Equal(t, "never", a.Shadowed[0].Name())
	require.Len(t, a.Unused, 1)
	require.Equal(t, "unused", a.Unused[0].Name())
}

func TestIncludePrefixIsDirectoryBounded(t *testing.T) {
	r, err := Compile([]config.RuleConfig{
		{Test: `\.png$`, Include: []string{"./images/"}, Type: config.RuleFile, Use: []string{"file"}},
	})
	require.NoError(t, err)

	require.NotNil(t, r.Match("images/a.png"))
	require.Nil(t, r.Match("images-old/a.png"))
	require.Nil(t, r.Match("a.png"))
}

func TestCompileRejectsBadPatterns(t *testing.T) {
	_, err := Compile([]config.RuleConfig{{Test: "(", Type: config.RuleFile, Use: []string{"file"}}})
	require.Error(t, err)

	_, err = Compile([]config.RuleConfig{{Test: "x", Exclude: "[", Type: config.RuleFile, Use: []string{"file"}}})
	require.Error(t, err)
}

func TestRuleOutputPath(t *testing.T) {
	r := defaultRouter(t)

	img := r.Match("images/icons/arrow.svg")
	out := img.OutputPath("images/icons/arrow.svg", []byte("<svg/>"))
	require.Equal(t, "images/arrow.svg", out)
	require.Equal(t, "images/arrow.svg", img.PublicURL(out))

	html := r.Match("about/index.html")
	require.Equal(t, "index.html", html.OutputPath("about/index.html", nil))

	font := r.Match("fonts/icons.woff2")
	out = font.OutputPath("fonts/icons.woff2", nil)
	require.Equal(t, "fonts/icons.woff2", out)
	require.Equal(t, "../fonts/icons.woff2", font.PublicURL(out))
}
