package bundle

import (
	"encoding/json"
	"strings"
)

// metafile is the subset of the esbuild metafile used for chunk membership.
type metafile struct {
	Inputs map[string]struct {
		Imports []struct {
			Path     string `json:"path"`
			External bool   `json:"external"`
		} `json:"imports"`
	} `json:"inputs"`
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
	} `json:"outputs"`
}

func parseMetafile(raw string) (*metafile, error) {
	var m metafile
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// walk visits the import graph depth first from key, in import order.
// Style stubs are reported once each; script inputs include key itself.
func (m *metafile) walk(key string) (scripts, styles []string) {
	visited := map[string]bool{}
	seenStyle := map[string]bool{}
	prefix := styleStubNamespace + ":"

	var visit func(k string)
	visit = func(k string) {
		if visited[k] {
			return
		}
		visited[k] = true
		if !strings.Contains(k, ":") {
			scripts = append(scripts, k)
		}
		for _, imp := range m.Inputs[k].Imports {
			if imp.External {
				continue
			}
			if rel, ok := strings.CutPrefix(imp.Path, prefix); ok {
				if !seenStyle[rel] {
					seenStyle[rel] = true
					styles = append(styles, rel)
				}
				continue
			}
			visit(imp.Path)
		}
	}
	visit(key)
	return scripts, styles
}
