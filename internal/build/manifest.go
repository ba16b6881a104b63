package build

import (
	"encoding/json"
	"sort"
)

// Manifest maps bundle names to their emitted files and source files to
// their output paths. It carries no timestamps so repeated builds of the
// same sources are byte-identical.
type Manifest struct {
	Chunks map[string]ManifestChunk `json:"chunks"`
	Files  map[string]string        `json:"files"`
}

// ManifestChunk lists the public URLs of one bundle name.
type ManifestChunk struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles"`
}

// BuildManifest derives the manifest from the compilation.
func BuildManifest(c *Compilation) Manifest {
	m := Manifest{Chunks: map[string]ManifestChunk{}, Files: map[string]string{}}
	for _, ch := range c.Chunks() {
		mc := ManifestChunk{Scripts: []string{}, Styles: []string{}}
		for _, p := range ch.Scripts {
			mc.Scripts = append(mc.Scripts, c.PublicURL(p))
		}
		for _, p := range ch.Styles {
			mc.Styles = append(mc.Styles, c.PublicURL(p))
		}
		sort.Strings(mc.Scripts)
		sort.Strings(mc.Styles)
		m.Chunks[ch.Name] = mc
	}
	for _, a := range c.Assets() {
		if a.Source == "" || a.Class == ClassMap {
			continue
		}
		if _, ok := m.Files[a.Source]; ok {
			continue
		}
		url := a.PublicURL
		if url == "" {
			url = c.PublicURL(a.Path)
		}
		m.Files[a.Source] = url
	}
	return m
}

// Marshal renders the manifest as indented JSON with a trailing newline.
// encoding/json sorts map keys, which keeps the output stable.
func (m Manifest) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
