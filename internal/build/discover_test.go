package build

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverLexicalOrderSkipsHiddenAndIgnored(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.js":                 "",
		"a/z.css":              "",
		"a/b.css":              "",
		".git/config":          "",
		".DS_Store":            "",
		"drafts/x.pug":         "",
		"keep/draft.pug":       "",
		"js/app.js~":           "",
		"js/app.js":            "",
		IgnoreFile:             "# comment\ndrafts/\n*~\n",
	})

	files, err := Discover(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a/b.css", "a/z.css", "b.js", "js/app.js", "keep/draft.pug"}, files)
}

func TestIgnoreRulesNegation(t *testing.T) {
	rules := readIgnoreRules(strings.NewReader("*.png\n!images/keep.png\nvendor/*.js\n"))
	require.True(t, rules.excludes("images/a.png", false))
	require.False(t, rules.excludes("images/keep.png", false))
	require.True(t, rules.excludes("vendor/lib.js", false))
	require.False(t, rules.excludes("js/lib.js", false))
	require.False(t, rules.excludes(filepath.ToSlash("vendor"), true))
}
