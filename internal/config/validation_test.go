package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func TestValidateOutputPathSafety(t *testing.T) {
	tests := []struct {
		name   string
		output string
		ok     bool
	}{
		{"default", "_distribute", true},
		{"nested dist", "build/site", true},
		{"project root", ".", false},
		{"source root", "_develop", false},
		{"inside source", "_develop/dist", false},
		{"parent of project", "..", false},
		{"filesystem root", "/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t)
			cfg := Default()
			cfg.Context = root
			cfg.Output.Path = tt.output

			err := Validate(&cfg)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))
		})
	}
}

func TestValidateReportDirOutsideOutput(t *testing.T) {
	root := writeProject(t)
	cfg := Default()
	cfg.Context = root
	cfg.Report.Directory = "_distribute/.report"
	require.Error(t, Validate(&cfg))

	cfg.Report.Disable = true
	require.NoError(t, Validate(&cfg))
}

func TestValidateEntries(t *testing.T) {
	root := writeProject(t)
	cfg := Default()
	cfg.Context = root

	cfg.Entry = map[string]string{"app": "js/missing.js"}
	err := Validate(&cfg)
	require.Error(t, err)
	c, ok := foundationerrors.AsClassified(err)
	require.True(t, ok)
	file, _ := c.Context().GetString("file")
	require.Equal(t, "js/missing.js", file)

	cfg.Entry = map[string]string{}
	require.Error(t, Validate(&cfg))

	require.NoError(t, os.WriteFile(filepath.Join(root, "_develop/js/admin.js"), []byte(""), 0o600))
	cfg.Entry = map[string]string{"app": "js/app.js", "admin": "js/admin.js"}
	cfg.Output.Filename = "js/bundle.js"
	require.Error(t, Validate(&cfg), "several entries need [name] in the filename")
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuleConfig)
	}{
		{"bad test regexp", func(r *RuleConfig) { r.Test = "(" }},
		{"bad exclude regexp", func(r *RuleConfig) { r.Exclude = "[" }},
		{"unknown type", func(r *RuleConfig) { r.Type = "binary" }},
		{"empty chain", func(r *RuleConfig) { r.Use = nil }},
		{"escaping include", func(r *RuleConfig) { r.Include = []string{"../outside"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t)
			cfg := Default()
			cfg.Context = root
			tt.mutate(&cfg.Rules[1])
			require.Error(t, Validate(&cfg))
		})
	}
}

func TestValidatePluginOrder(t *testing.T) {
	root := writeProject(t)
	cfg := Default()
	cfg.Context = root

	h, s := cfg.PluginIndex("html"), cfg.PluginIndex("inline-svg")
	cfg.Plugins[h], cfg.Plugins[s] = cfg.Plugins[s], cfg.Plugins[h]

	err := Validate(&cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "inline-svg plugin must come after the html plugin")
}

func TestValidateHTMLTemplateExists(t *testing.T) {
	root := writeProject(t)
	cfg := Default()
	cfg.Context = root
	require.NoError(t, os.Remove(filepath.Join(root, "_develop/templates/index.pug")))

	require.Error(t, Validate(&cfg))
}

func TestValidateMinifyAndDevServer(t *testing.T) {
	root := writeProject(t)
	cfg := Default()
	cfg.Context = root

	cfg.Optimization.Minify = "sometimes"
	require.Error(t, Validate(&cfg))
	cfg.Optimization.Minify = MinifyAuto

	cfg.DevServer.Port = 70000
	require.Error(t, Validate(&cfg))
	cfg.DevServer.Port = 9001

	cfg.DevServer.Stats = "verbose"
	require.Error(t, Validate(&cfg))
}
