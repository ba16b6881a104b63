// Package verify rebuilds a project and compares the result with existing
// output, producing unified patches for differing text files.
package verify

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// ChangeKind classifies a differing path.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// FileDiff is one differing output file.
type FileDiff struct {
	Path  string
	Kind  ChangeKind
	Patch string
}

// Unified produces a unified patch for a -> b with context lines.
// Binary content yields a one-line notice instead.
func Unified(aName, bName string, a, b []byte, context int) string {
	if isBinary(a) || isBinary(b) {
		return fmt.Sprintf("Binary files %s and %s differ\n", aName, bName)
	}
	if context <= 0 {
		context = 3
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(a)),
		B:        splitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  context,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return fmt.Sprintf("--- %s\n+++ %s\n@@\n# contents differ\n", aName, bName)
	}
	return s
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

func isBinary(b []byte) bool {
	return bytes.IndexByte(b, 0) >= 0 || !utf8.Valid(b)
}

// Compare reports the differences turning want into got, sorted by path.
func Compare(want, got map[string][]byte, context int) []FileDiff {
	var diffs []FileDiff
	for _, p := range sortedUnion(want, got) {
		w, inWant := want[p]
		g, inGot := got[p]
		switch {
		case !inGot:
			diffs = append(diffs, FileDiff{Path: p, Kind: Removed, Patch: Unified("a/"+p, "/dev/null", w, nil, context)})
		case !inWant:
			diffs = append(diffs, FileDiff{Path: p, Kind: Added, Patch: Unified("/dev/null", "b/"+p, nil, g, context)})
		case !bytes.Equal(w, g):
			diffs = append(diffs, FileDiff{Path: p, Kind: Changed, Patch: Unified("a/"+p, "b/"+p, w, g, context)})
		}
	}
	return diffs
}
