package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// NameParts carries the inputs of an output name.
type NameParts struct {
	Name    string // base name without extension
	Ext     string // extension without dot
	Path    string // source directory with trailing slash, "" at the root
	Content []byte // hashed lazily
}

// PartsFor splits a slash separated source path.
func PartsFor(rel string, content []byte) NameParts {
	dir, file := path.Split(rel)
	ext := path.Ext(file)
	return NameParts{
		Name:    strings.TrimSuffix(file, ext),
		Ext:     strings.TrimPrefix(ext, "."),
		Path:    dir,
		Content: content,
	}
}

var placeholder = regexp.MustCompile(`\[(name|ext|path|hash|contenthash)(?::(\d+))?\]`)

// Name expands a naming template. The only source of variation besides the
// inputs is the SHA-256 of the content.
func Name(template string, p NameParts) string {
	var sum string
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		switch sub[1] {
		case "name":
			return p.Name
		case "ext":
			return p.Ext
		case "path":
			return p.Path
		default:
			if sum == "" {
				sum = ContentHash(p.Content)
			}
			if sub[2] != "" {
				if n, err := strconv.Atoi(sub[2]); err == nil && n > 0 && n < len(sum) {
					return sum[:n]
				}
			}
			return sum
		}
	})
}

// ContentHash is the hex SHA-256 of b.
func ContentHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// JoinOutput joins a rule output directory and a name into a clean path
// relative to the output root. "/" and "" both mean the root.
func JoinOutput(dir, name string) string {
	p := path.Join("/", dir, name)
	return strings.TrimPrefix(p, "/")
}
