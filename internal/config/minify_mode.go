package config

import "strings"

// MinifyMode decides whether emitted scripts, styles and HTML are minified.
type MinifyMode string

const (
	MinifyAuto   MinifyMode = "auto"   // minify only in production
	MinifyAlways MinifyMode = "always" // always minify
	MinifyNever  MinifyMode = "never"  // never minify
)

// NormalizeMinifyMode case-folds a raw value. Booleans map to always/never.
// Unknown values return "".
func NormalizeMinifyMode(raw string) MinifyMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "auto":
		return MinifyAuto
	case "always", "true", "on":
		return MinifyAlways
	case "never", "false", "off", "":
		return MinifyNever
	default:
		return ""
	}
}

// Enabled resolves the mode against the production flag.
func (m MinifyMode) Enabled(production bool) bool {
	switch m {
	case MinifyAlways:
		return true
	case MinifyAuto:
		return production
	default:
		return false
	}
}
