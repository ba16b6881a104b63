package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Emitter publishes a finished compilation. Begin runs before any work,
// Commit after every stage succeeded, Abort after a failure.
type Emitter interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context, c *Compilation) error
	Abort()
}

// DiskEmitter writes the output directory wholesale. Files go to a sibling
// staging directory first; only a complete stage replaces the output.
type DiskEmitter struct {
	outputDir string
	stageDir  string
}

// NewDiskEmitter emits into outputDir.
func NewDiskEmitter(outputDir string) *DiskEmitter {
	return &DiskEmitter{outputDir: filepath.Clean(outputDir)}
}

// OutputDir is the final output location.
func (e *DiskEmitter) OutputDir() string { return e.outputDir }

// Begin creates the staging directory <output>_stage, discarding a stale one.
func (e *DiskEmitter) Begin(_ context.Context) error {
	stage := e.outputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot remove stale staging directory").
			WithContext("path", stage).
			Build()
	}
	if err := os.MkdirAll(stage, 0o750); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot create staging directory").
			WithContext("path", stage).
			Build()
	}
	e.stageDir = stage
	slog.Debug("Initialized staging directory", "staging", stage, "final", e.outputDir)
	return nil
}

// Commit writes every asset into staging, removes clean paths and promotes
// staging to the output directory.
func (e *DiskEmitter) Commit(ctx context.Context, c *Compilation) error {
	if e.stageDir == "" {
		return foundationerrors.InternalError("no staging directory initialized").Build()
	}
	for _, a := range c.Assets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(e.stageDir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot create output directory").
				WithContext("path", filepath.Dir(dst)).
				Build()
		}
		if err := os.WriteFile(dst, a.Contents, 0o644); err != nil { //nolint:gosec // published site assets are world readable
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot write output file").
				WithContext("path", a.Path).
				Build()
		}
	}
	for _, p := range c.CleanPaths() {
		if err := os.RemoveAll(p); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot clean path").
				WithContext("path", p).
				Build()
		}
		slog.Debug("Cleaned path", logfields.Path(p))
	}
	return e.finalizeStaging()
}

// finalizeStaging promotes staging to the output location:
//  1. Move the existing output (if any) to <output>.prev.
//  2. Rename staging to output.
//  3. Remove the backup.
func (e *DiskEmitter) finalizeStaging() error {
	if _, err := os.Stat(e.stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}
	prev := e.outputDir + ".prev"
	if err := removeWithRetry(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	if _, err := os.Stat(e.outputDir); err == nil {
		if err := os.Rename(e.outputDir, prev); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot back up existing output").
				WithContext("path", e.outputDir).
				Build()
		}
	}
	if err := os.Rename(e.stageDir, e.outputDir); err != nil {
		// put the previous output back so a failed promote changes nothing
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, e.outputDir)
		}
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot promote staging directory").
			WithContext("path", e.outputDir).
			Build()
	}
	e.stageDir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	slog.Debug("Promoted staging directory", "output", e.outputDir)
	return nil
}

func removeWithRetry(p string) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = os.RemoveAll(p); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

// Abort removes the staging directory after a failed build.
func (e *DiskEmitter) Abort() {
	if e.stageDir == "" {
		return
	}
	dir := e.stageDir
	e.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", "staging", dir, logfields.Error(err))
	}
}

// Snapshot is an immutable in-memory output tree.
type Snapshot struct {
	BuildID string
	Built   time.Time
	files   map[string][]byte
}

// NewSnapshot wraps files keyed by output-relative slash path.
func NewSnapshot(buildID string, files map[string][]byte) *Snapshot {
	clean := make(map[string][]byte, len(files))
	for p, b := range files {
		clean[cleanAssetPath(p)] = b
	}
	return &Snapshot{BuildID: buildID, Built: time.Now(), files: clean}
}

// Get returns the contents at a slash path relative to the output root.
func (s *Snapshot) Get(p string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.files[cleanAssetPath(p)]
	return b, ok
}

// Paths lists the snapshot's files in sorted order.
func (s *Snapshot) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len is the number of files in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.files)
}

// MemoryEmitter keeps the latest successful build in memory. Readers never
// observe a partially built tree.
type MemoryEmitter struct {
	current atomic.Pointer[Snapshot]
}

// NewMemoryEmitter returns an empty emitter.
func NewMemoryEmitter() *MemoryEmitter { return &MemoryEmitter{} }

func (m *MemoryEmitter) Begin(context.Context) error { return nil }

// Commit swaps in a snapshot of c. Clean paths do not apply in memory.
func (m *MemoryEmitter) Commit(_ context.Context, c *Compilation) error {
	files := make(map[string][]byte, len(c.Paths()))
	for _, a := range c.Assets() {
		files[a.Path] = a.Contents
	}
	m.current.Store(&Snapshot{BuildID: c.buildID, Built: time.Now(), files: files})
	return nil
}

func (m *MemoryEmitter) Abort() {}

// Snapshot returns the latest published snapshot, nil before the first build.
func (m *MemoryEmitter) Snapshot() *Snapshot { return m.current.Load() }
