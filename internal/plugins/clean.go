package plugins

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

func init() { build.RegisterPlugin("clean", newClean) }

type cleanOptions struct {
	Paths []string `yaml:"paths"`
}

// clean removes extra directories when the build is written to disk. The
// output directory itself is always regenerated and needs no entry here.
type clean struct {
	paths []string
}

func newClean(cfg *config.Config, _ config.Options, pc config.PluginConfig) (build.Plugin, error) {
	var opts cleanOptions
	if err := pc.Decode(&opts); err != nil {
		return nil, err
	}
	c := &clean{}
	for _, p := range opts.Paths {
		abs := cfg.Abs(p)
		if err := checkCleanPath(cfg, p, abs); err != nil {
			return nil, err
		}
		c.paths = append(c.paths, abs)
	}
	return c, nil
}

// checkCleanPath keeps removals inside the project and away from the trees
// the build reads or writes.
func checkCleanPath(cfg *config.Config, raw, abs string) error {
	reject := func(msg string) error {
		return foundationerrors.ValidationError(msg).WithContext("plugin", "clean").WithContext("path", raw).Build()
	}
	if !within(abs, cfg.Context) {
		return reject("clean path must be inside the project context")
	}
	for _, protected := range []string{cfg.SourceDir(), cfg.OutputDir()} {
		if abs == protected || within(protected, abs) || within(abs, protected) {
			return reject("clean path overlaps the source or output tree")
		}
	}
	if rd := cfg.ReportDir(); rd != "" && (abs == rd || within(rd, abs)) {
		return reject("clean path contains the report directory")
	}
	return nil
}

// within reports whether p is strictly inside dir.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *clean) Name() string { return "clean" }

func (c *clean) Apply(_ context.Context, comp *build.Compilation) error {
	for _, p := range c.paths {
		comp.AddCleanPath(p)
		slog.Debug("Scheduled clean path", logfields.Plugin("clean"), logfields.Path(p))
	}
	return nil
}
