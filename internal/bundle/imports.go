package bundle

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

var (
	styleCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	styleImportPattern  = regexp.MustCompile(`@(?:import|use|forward)\s+([^;{]+)`)
	quotedPattern       = regexp.MustCompile(`["']([^"']+)["']`)
)

var styleExtensions = []string{".scss", ".sass", ".css"}

// StyleDependencies scans files for @import, @use and @forward and returns
// the members of files that another style file pulls in. Such files are
// compiled as part of their importer and never stand alone. Paths are
// relative to root with forward slashes.
func StyleDependencies(root string, files []string) (map[string]bool, error) {
	known := make(map[string]bool, len(files))
	for _, rel := range files {
		known[rel] = true
	}
	reached := make(map[string]bool)
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read style file").
				WithContext("file", rel).
				Build()
		}
		for _, target := range styleImports(data) {
			for _, dir := range []string{path.Dir(rel), "."} {
				if dep, ok := resolveStyle(dir, target, known); ok && dep != rel {
					reached[dep] = true
					break
				}
			}
		}
	}
	return reached, nil
}

// styleImports lists the local targets named by import rules in src.
func styleImports(src []byte) []string {
	text := styleCommentPattern.ReplaceAllString(string(src), "")
	var targets []string
	for _, m := range styleImportPattern.FindAllStringSubmatch(text, -1) {
		for _, q := range quotedPattern.FindAllStringSubmatch(m[1], -1) {
			t := q[1]
			if strings.Contains(t, "://") || strings.HasPrefix(t, "sass:") {
				continue
			}
			targets = append(targets, strings.TrimPrefix(t, "~"))
		}
	}
	return targets
}

// resolveStyle applies Sass lookup order: exact file, extension added,
// underscore partial, then an index file inside a directory.
func resolveStyle(dir, target string, known map[string]bool) (string, bool) {
	base := path.Join(dir, target)
	parent, name := path.Split(base)
	stems := []string{base, parent + "_" + name}

	var candidates []string
	if path.Ext(name) != "" {
		candidates = append(candidates, stems...)
	}
	for _, stem := range stems {
		for _, ext := range styleExtensions {
			candidates = append(candidates, stem+ext)
		}
	}
	for _, idx := range []string{"_index", "index"} {
		for _, ext := range styleExtensions {
			candidates = append(candidates, path.Join(base, idx+ext))
		}
	}
	for _, c := range candidates {
		if known[c] {
			return c, true
		}
	}
	return "", false
}
