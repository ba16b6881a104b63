package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode is the top-level lifecycle selected by an external trigger.
type Mode string

const (
	ModeBuild  Mode = "build"  // single pass to disk
	ModeStart  Mode = "start"  // watch and rebuild to disk
	ModeServer Mode = "server" // watch and rebuild in memory, serve over HTTP
)

const (
	envLifecycle    = "ASSETPIPE_LIFECYCLE"
	envNpmLifecycle = "npm_lifecycle_event"
	envEnvironment  = "ASSETPIPE_ENV"
	envNodeEnv      = "NODE_ENV"
)

// ParseMode maps a lifecycle event name to a Mode. Unknown names yield ModeBuild.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeStart:
		return ModeStart
	case ModeServer:
		return ModeServer
	default:
		return ModeBuild
	}
}

// ModeFromEnv reads ASSETPIPE_LIFECYCLE, falling back to npm_lifecycle_event.
func ModeFromEnv() Mode {
	if v := os.Getenv(envLifecycle); v != "" {
		return ParseMode(v)
	}
	return ParseMode(os.Getenv(envNpmLifecycle))
}

// ProductionFromEnv reports whether ASSETPIPE_ENV (or NODE_ENV) is "production".
func ProductionFromEnv() bool {
	v := os.Getenv(envEnvironment)
	if v == "" {
		v = os.Getenv(envNodeEnv)
	}
	return strings.EqualFold(strings.TrimSpace(v), "production")
}

// Options is built once at process start and passed by value into the
// pipeline. Nothing downstream reads the environment.
type Options struct {
	Mode       Mode
	Production bool
	Config     *Config
}

// NewOptions captures the production flag from the environment.
func NewOptions(cfg *Config, mode Mode) Options {
	return Options{Mode: mode, Production: ProductionFromEnv(), Config: cfg}
}

// Minify resolves the configured minify mode for this run.
func (o Options) Minify() bool {
	if o.Config == nil {
		return false
	}
	return o.Config.Optimization.Minify.Enabled(o.Production)
}

// Watching reports whether the run rebuilds on change.
func (o Options) Watching() bool { return o.Mode == ModeStart || o.Mode == ModeServer }

// InMemory reports whether builds are emitted to memory instead of disk.
func (o Options) InMemory() bool { return o.Mode == ModeServer }

// WriteBanner prints the informational banner for watch lifecycles.
func WriteBanner(w io.Writer, mode Mode) {
	if mode == ModeBuild {
		return
	}
	upper := cases.Upper(language.English)
	rule := strings.Repeat("* ", 9) + "*"
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "** RUNNING: %s\n", upper.String(string(mode)))
	fmt.Fprintf(w, "** %s: assetpipe start - rebuilds the distribute folder.\n", upper.String(string(ModeStart)))
	if mode == ModeServer {
		fmt.Fprintf(w, "** %s: assetpipe server - serves immediate updates from memory\n", upper.String(string(ModeServer)))
	} else {
		fmt.Fprintf(w, "** %s: assetpipe server - ...\n", upper.String(string(ModeServer)))
	}
	fmt.Fprintln(w, rule)
}
