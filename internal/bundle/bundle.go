package bundle

import (
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// Asset classes for bundle outputs.
const (
	ClassScript = "script"
	ClassStyle  = "style"
	ClassAsset  = "asset"
)

const (
	styleStubNamespace = "assetpipe-style"
	chunkNamespace     = "assetpipe-chunk"
	pluginName         = "assetpipe"
)

// Output is one emitted bundle file.
type Output struct {
	Path     string // relative to the output root
	Contents []byte
	Map      []byte // external source map, nil when disabled
	Chunk    string // entry or chunk name
	Class    string
	Sources  []string // contributing source files, relative to the source root
}

// MapPath is where the source map is emitted.
func (o Output) MapPath() string { return o.Path + ".map" }

// Options configures both builds.
type Options struct {
	SourceRoot string
	OutputRoot string
	SourceMaps bool
	Minify     bool
	Router     *rules.Router
	// Chains holds one chain per rule index.
	Chains map[int]*transform.Chain
}

func (o Options) chainFor(rel string, want string) (*rules.Rule, *transform.Chain) {
	rule := o.Router.Match(rel)
	if rule == nil || string(rule.Type()) != want {
		return nil, nil
	}
	return rule, o.Chains[rule.Index]
}

// relSlash returns p relative to root with forward slashes.
func relSlash(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// firstError keeps the first classified failure raised inside esbuild
// callbacks, which run concurrently.
type firstError struct {
	mu  sync.Mutex
	err error
}

func (f *firstError) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// resolving marks nested resolve calls so our own callbacks step aside.
type resolving struct{}

func isPartial(rel string) bool {
	return strings.HasPrefix(filepath.Base(rel), "_")
}
