package rules

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

const defaultFileName = "[path][name].[ext]"

// Rule is a compiled rule configuration.
type Rule struct {
	Index   int
	Config  config.RuleConfig
	test    *regexp.Regexp
	exclude *regexp.Regexp
	include []string
}

// Name returns the configured name or the test pattern.
func (r *Rule) Name() string { return r.Config.Label() }

// Type returns the chain class handling matched files.
func (r *Rule) Type() config.RuleType { return r.Config.Type }

// Use returns the loader chain as declared; the last loader runs first.
func (r *Rule) Use() []string { return r.Config.Use }

// Matches reports whether rel (slash separated, relative to the source root)
// satisfies test, include and exclude.
func (r *Rule) Matches(rel string) bool {
	if !r.test.MatchString(rel) {
		return false
	}
	if len(r.include) > 0 {
		ok := false
		for _, prefix := range r.include {
			if prefix == "" || strings.HasPrefix(rel, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return r.exclude == nil || !r.exclude.MatchString(rel)
}

// OutputPath computes where a file handled by this rule is emitted,
// relative to the output root.
func (r *Rule) OutputPath(rel string, content []byte) string {
	tmpl := r.Config.Output.Name
	if tmpl == "" {
		tmpl = defaultFileName
	}
	name := Name(tmpl, PartsFor(rel, content))
	return JoinOutput(r.Config.Output.Path, name)
}

// PublicURL returns the reference templates should use for an emitted file.
func (r *Rule) PublicURL(outPath string) string {
	if r.Config.Output.PublicPath == "" {
		return outPath
	}
	return r.Config.Output.PublicPath + outPath
}

// Router matches files against rules in declaration order.
type Router struct {
	rules []*Rule
}

// Compile builds a Router. Include prefixes are relative to the source root.
func Compile(cfgs []config.RuleConfig) (*Router, error) {
	router := &Router{rules: make([]*Rule, 0, len(cfgs))}
	for i, rc := range cfgs {
		test, err := regexp.Compile(rc.Test)
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid rule test pattern").
				Fatal().
				WithContext("rule", rc.Label()).
				Build()
		}
		rule := &Rule{Index: i, Config: rc, test: test}
		if rc.Exclude != "" {
			rule.exclude, err = regexp.Compile(rc.Exclude)
			if err != nil {
				return nil, foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid rule exclude pattern").
					Fatal().
					WithContext("rule", rc.Label()).
					Build()
			}
		}
		for _, inc := range rc.Include {
			rule.include = append(rule.include, normalizePrefix(inc))
		}
		router.rules = append(router.rules, rule)
	}
	return router, nil
}

func normalizePrefix(p string) string {
	p = path.Clean(strings.TrimPrefix(strings.ReplaceAll(p, `\`, "/"), "./"))
	p = strings.TrimPrefix(p, "/")
	if p == "." || p == "" {
		return ""
	}
	return p + "/"
}

// Rules returns the compiled rules in declaration order.
func (r *Router) Rules() []*Rule { return r.rules }

// Match returns the first rule matching rel, or nil.
func (r *Router) Match(rel string) *Rule {
	for _, rule := range r.rules {
		if rule.Matches(rel) {
			return rule
		}
	}
	return nil
}

// Assignment is the routing decision for one file.
type Assignment struct {
	Path string
	Rule *Rule
	// Overlaps lists later rules that also match but are unreachable for Path.
	Overlaps []*Rule
}

// Analysis summarizes routing for a file set.
type Analysis struct {
	Assignments []Assignment
	Unmatched   []string
	// Shadowed rules match at least one file but are never first.
	Shadowed []*Rule
	// Unused rules match no file at all.
	Unused []*Rule
}

// Analyze routes every file and reports overlap. files keeps its order.
func (r *Router) Analyze(files []string) Analysis {
	var a Analysis
	first := make(map[int]bool)
	matched := make(map[int]bool)

	for _, f := range files {
		var hit *Rule
		var overlaps []*Rule
		for _, rule := range r.rules {
			if !rule.Matches(f) {
				continue
			}
			matched[rule.Index] = true
			if hit == nil {
				hit = rule
				first[rule.Index] = true
				continue
			}
			overlaps = append(overlaps, rule)
		}
		if hit == nil {
			a.Unmatched = append(a.Unmatched, f)
			continue
		}
		a.Assignments = append(a.Assignments, Assignment{Path: f, Rule: hit, Overlaps: overlaps})
	}

	for _, rule := range r.rules {
		switch {
		case !matched[rule.Index]:
			a.Unused = append(a.Unused, rule)
		case !first[rule.Index]:
			a.Shadowed = append(a.Shadowed, rule)
		}
	}
	return a
}

// String renders a rule for diagnostics.
func (r *Rule) String() string {
	return fmt.Sprintf("#%d %s (%s: %s)", r.Index, r.Name(), r.Type(), strings.Join(r.Use(), " <- "))
}
