package verify

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// Options controls a verification run.
type Options struct {
	// Twice compares two fresh builds instead of a fresh build against the
	// output directory.
	Twice   bool
	Context int
}

// Result lists the differences found.
type Result struct {
	Compared string
	Diffs    []FileDiff
}

// Clean reports whether the trees matched.
func (r Result) Clean() bool { return len(r.Diffs) == 0 }

// Write prints a summary line per file followed by its patch.
func (r Result) Write(w io.Writer) {
	if r.Clean() {
		_, _ = fmt.Fprintf(w, "No differences (%s)\n", r.Compared)
		return
	}
	for _, d := range r.Diffs {
		_, _ = fmt.Fprintf(w, "%s %s\n", d.Kind, d.Path)
	}
	for _, d := range r.Diffs {
		_, _ = io.WriteString(w, d.Patch)
	}
}

// Run builds in memory and compares against the current output directory,
// or against a second in-memory build when opts.Twice is set.
func Run(ctx context.Context, lifecycle config.Options, opts Options) (Result, error) {
	fresh, err := buildInMemory(ctx, lifecycle)
	if err != nil {
		return Result{}, err
	}
	if opts.Twice {
		second, err := buildInMemory(ctx, lifecycle)
		if err != nil {
			return Result{}, err
		}
		return Result{Compared: "two fresh builds", Diffs: Compare(fresh, second, opts.Context)}, nil
	}
	dir := lifecycle.Config.OutputDir()
	current, err := ReadTree(dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Compared: dir, Diffs: Compare(current, fresh, opts.Context)}, nil
}

func buildInMemory(ctx context.Context, lifecycle config.Options) (map[string][]byte, error) {
	mem := build.NewMemoryEmitter()
	b, err := build.New(lifecycle, build.WithEmitter(mem), build.WithoutReport())
	if err != nil {
		return nil, err
	}
	if _, err := b.Build(ctx); err != nil {
		return nil, err
	}
	return SnapshotTree(mem.Snapshot()), nil
}

// SnapshotTree copies a snapshot into a path -> contents map.
func SnapshotTree(s *build.Snapshot) map[string][]byte {
	out := make(map[string][]byte, s.Len())
	for _, p := range s.Paths() {
		out[p], _ = s.Get(p)
	}
	return out
}

// ReadTree loads every regular file under dir keyed by slash path. A
// missing directory is an empty tree.
func ReadTree(dir string) (map[string][]byte, error) {
	out := map[string][]byte{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = b
		return nil
	})
	return out, err
}

func sortedUnion(a, b map[string][]byte) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
