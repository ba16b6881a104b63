package build

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// Asset classes of emitted files.
const (
	ClassScript   = "script"
	ClassStyle    = "style"
	ClassMap      = "map"
	ClassAsset    = "asset" // url() dependency emitted by the style bundler
	ClassFile     = "file"  // file rule passthrough
	ClassCopy     = "copy"
	ClassHTML     = "html"
	ClassManifest = "manifest"
)

// Asset is one file of the compilation.
type Asset struct {
	Path      string // slash path relative to the output root
	Contents  []byte
	Class     string
	Source    string // source file relative to the source root, empty when generated
	Chunk     string
	PublicURL string
}

// Chunk lists the emitted files of one bundle name.
type Chunk struct {
	Name    string
	Scripts []string
	Styles  []string
}

// Compilation is the in-memory output of one build pass. Plugins receive it
// after the transform graph has run and may add, replace or remove assets.
type Compilation struct {
	Config   *config.Config
	Options  config.Options
	Env      transform.Env
	Router   *rules.Router
	Chains   map[int]*transform.Chain
	Recorder metrics.Recorder

	// Files are the discovered source files, slash separated, in lexical order.
	Files []string

	buildID    string
	mu         sync.RWMutex
	assets     map[string]*Asset
	chunks     map[string]*Chunk
	cleanPaths []string
}

func newCompilation(b *Builder) *Compilation {
	return &Compilation{
		Config:   b.cfg,
		Options:  b.opts,
		Env:      b.env,
		Router:   b.router,
		Chains:   b.chains,
		Recorder: b.recorder,
		assets:   make(map[string]*Asset),
		chunks:   make(map[string]*Chunk),
	}
}

// BuildID identifies the build pass producing this compilation.
func (c *Compilation) BuildID() string { return c.buildID }

func cleanAssetPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
}

// Add inserts an asset. Two different sources claiming one output path is
// a build error.
func (c *Compilation) Add(a *Asset) error {
	a.Path = cleanAssetPath(a.Path)
	if a.Path == "" {
		return foundationerrors.BuildError("empty output path").WithContext("file", a.Source).Build()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.assets[a.Path]; ok {
		return foundationerrors.BuildError("output path conflict").
			WithContext("path", a.Path).
			WithContext("file", a.Source).
			WithContext("previous", prev.Source).
			Build()
	}
	c.assets[a.Path] = a
	if a.Chunk != "" {
		ch := c.chunkLocked(a.Chunk)
		switch a.Class {
		case ClassScript:
			ch.Scripts = append(ch.Scripts, a.Path)
		case ClassStyle:
			ch.Styles = append(ch.Styles, a.Path)
		}
	}
	return nil
}

// Put inserts or replaces an asset.
func (c *Compilation) Put(a *Asset) {
	a.Path = cleanAssetPath(a.Path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[a.Path] = a
}

func (c *Compilation) chunkLocked(name string) *Chunk {
	ch, ok := c.chunks[name]
	if !ok {
		ch = &Chunk{Name: name}
		c.chunks[name] = ch
	}
	return ch
}

// Get returns the asset at p.
func (c *Compilation) Get(p string) (*Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assets[cleanAssetPath(p)]
	return a, ok
}

// Remove deletes the asset at p.
func (c *Compilation) Remove(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.assets, cleanAssetPath(p))
}

// Paths lists asset paths in sorted order.
func (c *Compilation) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.assets))
	for p := range c.assets {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Assets lists assets sorted by path.
func (c *Compilation) Assets() []*Asset {
	paths := c.Paths()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Asset, 0, len(paths))
	for _, p := range paths {
		out = append(out, c.assets[p])
	}
	return out
}

// AssetsOf lists assets of one class sorted by path.
func (c *Compilation) AssetsOf(class string) []*Asset {
	var out []*Asset
	for _, a := range c.Assets() {
		if a.Class == class {
			out = append(out, a)
		}
	}
	return out
}

// Chunks lists chunks sorted by name.
func (c *Compilation) Chunks() []Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.chunks))
	for n := range c.chunks {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Chunk, 0, len(names))
	for _, n := range names {
		ch := c.chunks[n]
		out = append(out, Chunk{
			Name:    ch.Name,
			Scripts: append([]string(nil), ch.Scripts...),
			Styles:  append([]string(nil), ch.Styles...),
		})
	}
	return out
}

// AddCleanPath schedules an absolute path for removal when the output is
// emitted to disk.
func (c *Compilation) AddCleanPath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanPaths = append(c.cleanPaths, p)
}

// CleanPaths returns the scheduled removals.
func (c *Compilation) CleanPaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.cleanPaths...)
}

// SourcePath returns the absolute path of a source-relative file.
func (c *Compilation) SourcePath(rel string) string {
	return filepath.Join(c.Config.SourceDir(), filepath.FromSlash(rel))
}

// ChainFor returns the first matching rule and its chain for rel.
func (c *Compilation) ChainFor(rel string) (*rules.Rule, *transform.Chain) {
	rule := c.Router.Match(rel)
	if rule == nil {
		return nil, nil
	}
	return rule, c.Chains[rule.Index]
}

// PublicURL prefixes an output path with output.public_path.
func (c *Compilation) PublicURL(p string) string {
	if c.Config.Output.PublicPath == "" {
		return p
	}
	return c.Config.Output.PublicPath + p
}

// TemplateData is the data handed to page templates: the asset map used by
// the asset function plus the bundle references per chunk.
func (c *Compilation) TemplateData() map[string]any {
	assets := make(map[string]string)
	for _, a := range c.Assets() {
		url := a.PublicURL
		if url == "" {
			url = c.PublicURL(a.Path)
		}
		assets[a.Path] = url
		if a.Source != "" {
			if _, taken := assets[a.Source]; !taken {
				assets[a.Source] = url
			}
		}
	}
	chunks := make(map[string]map[string][]string)
	for _, ch := range c.Chunks() {
		ref := map[string][]string{"Scripts": {}, "Styles": {}}
		for _, p := range ch.Scripts {
			ref["Scripts"] = append(ref["Scripts"], c.PublicURL(p))
		}
		for _, p := range ch.Styles {
			ref["Styles"] = append(ref["Styles"], c.PublicURL(p))
		}
		chunks[ch.Name] = ref
	}
	return map[string]any{
		transform.AssetsKey: assets,
		"Chunks":            chunks,
		"Production":        c.Options.Production,
		"Mode":              string(c.Options.Mode),
	}
}
