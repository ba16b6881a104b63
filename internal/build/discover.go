package build

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFile lists source-relative patterns excluded from discovery.
const IgnoreFile = ".assetpipeignore"

type ignoreRule struct {
	pattern string
	negate  bool
	dirOnly bool
}

// ignoreRules is a parsed ignore file. Later rules override earlier ones,
// and a leading "!" re-includes a path.
type ignoreRules []ignoreRule

func readIgnoreRules(r io.Reader) ignoreRules {
	var out ignoreRules
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		rule.pattern = strings.TrimPrefix(line, "/")
		out = append(out, rule)
	}
	return out
}

func loadIgnoreRules(root string) ignoreRules {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()
	return readIgnoreRules(f)
}

// excludes reports whether rel is ignored. Patterns without a slash match
// the base name at any depth; others match the whole path or a prefix of it.
func (rs ignoreRules) excludes(rel string, isDir bool) bool {
	excluded := false
	for _, r := range rs {
		if r.dirOnly && !isDir {
			continue
		}
		if r.matches(rel) {
			excluded = !r.negate
		}
	}
	return excluded
}

func (r ignoreRule) matches(rel string) bool {
	if !strings.Contains(r.pattern, "/") {
		ok, _ := path.Match(r.pattern, path.Base(rel))
		return ok
	}
	for p := rel; p != "." && p != ""; p = path.Dir(p) {
		if ok, _ := path.Match(r.pattern, p); ok {
			return true
		}
	}
	return false
}

// IgnoreMatcher applies ignore-file patterns to slash-separated relative paths.
type IgnoreMatcher struct {
	rules ignoreRules
}

// NewIgnoreMatcher parses patterns with the same syntax as IgnoreFile.
func NewIgnoreMatcher(patterns []string) IgnoreMatcher {
	return IgnoreMatcher{rules: readIgnoreRules(strings.NewReader(strings.Join(patterns, "\n")))}
}

// LoadIgnoreMatcher reads the ignore file at root, if any.
func LoadIgnoreMatcher(root string) IgnoreMatcher {
	return IgnoreMatcher{rules: loadIgnoreRules(root)}
}

func (m IgnoreMatcher) Excludes(rel string, isDir bool) bool {
	return m.rules.excludes(rel, isDir)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Discover walks root in lexical order and returns slash-separated paths of
// regular files relative to root. Dot files and directories are skipped, as
// is anything listed in the root's ignore file.
func Discover(root string) ([]string, error) {
	ignore := loadIgnoreRules(root)
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isHidden(d.Name()) || ignore.excludes(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
