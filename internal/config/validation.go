package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validatePaths,
		v.validateEntries,
		v.validateRules,
		v.validatePlugins,
		v.validateDevServer,
		v.validateOptimization,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func invalid(msg string) *foundationerrors.ErrorBuilder {
	return foundationerrors.ValidationError(msg)
}

// validatePaths guards the wholesale output reset: the output directory may
// never be, or contain, the project or source tree.
func (cv *configurationValidator) validatePaths() error {
	cfg := cv.config
	out := cfg.OutputDir()
	src := cfg.SourceDir()

	if out == filepath.VolumeName(out)+string(filepath.Separator) {
		return invalid("output path must not be the filesystem root").WithContext("path", out).Build()
	}
	for _, protected := range []struct{ name, dir string }{
		{"project context", cfg.Context},
		{"source root", src},
	} {
		if out == protected.dir {
			return invalid(fmt.Sprintf("output path must not be the %s", protected.name)).WithContext("path", out).Build()
		}
		if isWithin(protected.dir, out) {
			return invalid(fmt.Sprintf("output path must not contain the %s", protected.name)).WithContext("path", out).Build()
		}
	}
	if isWithin(out, src) {
		return invalid("output path must not be inside the source root").WithContext("path", out).Build()
	}

	if st, err := os.Stat(src); err != nil || !st.IsDir() {
		return invalid("source root does not exist").WithContext("path", src).Build()
	}

	if rd := cfg.ReportDir(); rd != "" && (rd == out || isWithin(rd, out)) {
		return invalid("report directory must be outside the output path").WithContext("path", rd).Build()
	}
	return nil
}

func (cv *configurationValidator) validateEntries() error {
	cfg := cv.config
	if len(cfg.Entry) == 0 {
		return invalid("at least one entry is required").Build()
	}
	for _, name := range cfg.EntryNames() {
		rel := cfg.Entry[name]
		if name == "" || strings.ContainsAny(name, `/\`) {
			return invalid("entry name must be a plain identifier").WithContext("entry", name).Build()
		}
		p := filepath.Join(cfg.SourceDir(), filepath.FromSlash(rel))
		if _, err := os.Stat(p); err != nil {
			return invalid("entry file does not exist").
				WithContext("entry", name).
				WithContext("file", rel).
				Build()
		}
	}
	if !strings.Contains(cfg.Output.Filename, "[name]") && len(cfg.Entry) > 1 {
		return invalid("output filename must contain [name] when several entries are configured").
			WithContext("filename", cfg.Output.Filename).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateRules() error {
	for i, r := range cv.config.Rules {
		label := fmt.Sprintf("rules[%d] %s", i, r.Label())
		if r.Test == "" {
			return invalid("rule test pattern is required").WithContext("rule", label).Build()
		}
		if _, err := regexp.Compile(r.Test); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid rule test pattern").
				Fatal().
				WithContext("rule", label).
				Build()
		}
		if r.Exclude != "" {
			if _, err := regexp.Compile(r.Exclude); err != nil {
				return foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid rule exclude pattern").
					Fatal().
					WithContext("rule", label).
					Build()
			}
		}
		switch r.Type {
		case RuleScript, RuleStyle, RuleTemplate, RuleFile:
		default:
			return invalid(fmt.Sprintf("unknown rule type %q", r.Type)).WithContext("rule", label).Build()
		}
		if len(r.Use) == 0 {
			return invalid("rule has an empty loader chain").WithContext("rule", label).Build()
		}
		for _, inc := range r.Include {
			if filepath.IsAbs(inc) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(inc)), "../") {
				return invalid("rule include must be relative to the source root").
					WithContext("rule", label).
					WithContext("path", inc).
					Build()
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validatePlugins() error {
	cfg := cv.config
	htmlIdx := cfg.PluginIndex("html")
	svgIdx := cfg.PluginIndex("inline-svg")
	if htmlIdx >= 0 && svgIdx >= 0 && svgIdx < htmlIdx {
		return invalid("inline-svg plugin must come after the html plugin").Build()
	}

	for _, p := range cfg.Plugins {
		if p.Name == "" {
			return invalid("plugin name is required").Build()
		}
		if p.Name != "html" {
			continue
		}
		var opts struct {
			Template string `yaml:"template"`
		}
		if err := p.Decode(&opts); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid html plugin options").Fatal().Build()
		}
		if opts.Template == "" {
			return invalid("html plugin requires a template").Build()
		}
		tpl := filepath.Join(cfg.SourceDir(), filepath.FromSlash(opts.Template))
		if _, err := os.Stat(tpl); err != nil {
			return invalid("html plugin template does not exist").WithContext("file", opts.Template).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateDevServer() error {
	ds := cv.config.DevServer
	if ds.Port < 1 || ds.Port > 65535 {
		return invalid(fmt.Sprintf("dev server port out of range: %d", ds.Port)).Build()
	}
	if ds.Stats != StatsErrorsOnly && ds.Stats != StatsNormal {
		return invalid(fmt.Sprintf("unknown dev server stats preset %q", ds.Stats)).Build()
	}
	return nil
}

func (cv *configurationValidator) validateOptimization() error {
	if NormalizeMinifyMode(string(cv.config.Optimization.Minify)) == "" {
		return invalid(fmt.Sprintf("unknown minify mode %q (expected auto|always|never)", cv.config.Optimization.Minify)).Build()
	}
	return nil
}

// isWithin reports whether path is strictly inside dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
