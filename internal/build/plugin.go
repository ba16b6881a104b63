package build

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// Plugin post-processes the compilation. Plugins run in declared order
// after every transform chain has finished.
type Plugin interface {
	Name() string
	Apply(ctx context.Context, c *Compilation) error
}

// PluginFactory constructs a plugin from its configuration entry.
type PluginFactory func(cfg *config.Config, opts config.Options, pc config.PluginConfig) (Plugin, error)

var (
	pluginMu  sync.RWMutex
	pluginReg = map[string]PluginFactory{}
)

// RegisterPlugin adds a plugin factory. Intended to be called from init().
func RegisterPlugin(name string, f PluginFactory) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	if _, ok := pluginReg[name]; !ok {
		pluginReg[name] = f
	}
}

// PluginNames lists registered plugins in sorted order.
func PluginNames() []string {
	pluginMu.RLock()
	defer pluginMu.RUnlock()
	names := make([]string, 0, len(pluginReg))
	for n := range pluginReg {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewPlugin constructs a registered plugin.
func NewPlugin(cfg *config.Config, opts config.Options, pc config.PluginConfig) (Plugin, error) {
	pluginMu.RLock()
	f, ok := pluginReg[pc.Name]
	pluginMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (registered: %v)", pc.Name, PluginNames())
	}
	return f(cfg, opts, pc)
}

// SnapshotPluginsForTest returns a copy of the plugin registry (test only).
func SnapshotPluginsForTest() map[string]PluginFactory {
	pluginMu.RLock()
	defer pluginMu.RUnlock()
	cp := make(map[string]PluginFactory, len(pluginReg))
	for k, v := range pluginReg {
		cp[k] = v
	}
	return cp
}

// RestorePluginsForTest replaces the plugin registry (test only).
func RestorePluginsForTest(cp map[string]PluginFactory) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	pluginReg = cp
}
