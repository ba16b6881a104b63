package transform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Asset is the unit flowing through a chain.
type Asset struct {
	Path      string // absolute source path
	Rel       string // slash path relative to the source root
	Contents  []byte
	SourceMap []byte         // optional v3 source map for Contents
	Data      map[string]any // template data, nil for non-template chains
}

// Transformer is one loader step.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, a *Asset) error
}

// Env carries run-wide switches resolved once at process start.
type Env struct {
	SourceRoot string
	SourceMaps bool
	Minify     bool
	Production bool
}

// Factory constructs a loader. decode fills a struct from the rule's options
// for that loader and is a no-op when none are configured.
type Factory func(env Env, decode func(any) error) (Transformer, error)

var (
	regMu sync.RWMutex
	reg   = map[string]Factory{}
)

// Register adds a loader factory. Intended to be called from init() of loader files.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := reg[name]; !ok {
		reg[name] = f
	}
}

// Has reports whether a loader is registered.
func Has(name string) bool {
	regMu.RLock()
	defer regMu.RUnlock()
	_, ok := reg[name]
	return ok
}

// Names lists registered loaders in sorted order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(reg))
	for n := range reg {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New constructs a registered loader.
func New(name string, env Env, decode func(any) error) (Transformer, error) {
	regMu.RLock()
	f, ok := reg[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown loader %q", name)
	}
	if decode == nil {
		decode = func(any) error { return nil }
	}
	return f(env, decode)
}

// SnapshotForTest returns a copy of the registry (test only).
func SnapshotForTest() map[string]Factory {
	regMu.RLock()
	defer regMu.RUnlock()
	cp := make(map[string]Factory, len(reg))
	for k, v := range reg {
		cp[k] = v
	}
	return cp
}

// RestoreForTest replaces the registry (test only).
func RestoreForTest(cp map[string]Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	reg = cp
}
