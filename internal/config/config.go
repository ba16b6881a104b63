package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// CurrentVersion is the configuration schema version understood by this build.
const CurrentVersion = "1"

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = "assetpipe.yaml"

// Config represents the declarative pipeline configuration.
type Config struct {
	Version string `yaml:"version"`
	// Context is the project root. Relative paths elsewhere resolve against it.
	// Defaults to the directory containing the configuration file.
	Context      string             `yaml:"context,omitempty"`
	Source       string             `yaml:"source"`
	Devtool      string             `yaml:"devtool,omitempty"`
	Entry        map[string]string  `yaml:"entry"`
	Output       OutputConfig       `yaml:"output"`
	Rules        []RuleConfig       `yaml:"rules"`
	Styles       StylesConfig       `yaml:"styles"`
	Plugins      []PluginConfig     `yaml:"plugins"`
	DevServer    DevServerConfig    `yaml:"dev_server"`
	Watch        WatchConfig        `yaml:"watch"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Report       ReportConfig       `yaml:"report"`
	Notify       NotifyConfig       `yaml:"notify,omitempty"`
}

// OutputConfig describes the distribution directory and script naming.
type OutputConfig struct {
	Path       string `yaml:"path"`
	Filename   string `yaml:"filename"`
	PublicPath string `yaml:"public_path,omitempty"`
	Manifest   string `yaml:"manifest,omitempty"` // empty: no manifest file
}

// RuleType selects which chain handles files matched by a rule.
type RuleType string

const (
	RuleScript   RuleType = "script"
	RuleStyle    RuleType = "style"
	RuleTemplate RuleType = "template"
	RuleFile     RuleType = "file"
)

// RuleConfig routes matching files to a loader chain.
type RuleConfig struct {
	Name    string               `yaml:"name,omitempty"`
	Test    string               `yaml:"test"`
	Include []string             `yaml:"include,omitempty"` // prefixes relative to source
	Exclude string               `yaml:"exclude,omitempty"` // regexp
	Type    RuleType             `yaml:"type"`
	Use     []string             `yaml:"use"` // applied right to left
	Options map[string]yaml.Node `yaml:"options,omitempty"`
	Output  RuleOutput           `yaml:"output,omitempty"`
}

// RuleOutput controls where file and template rule results are emitted.
type RuleOutput struct {
	Name       string `yaml:"name,omitempty"`
	Path       string `yaml:"path,omitempty"`
	PublicPath string `yaml:"public_path,omitempty"`
}

// DecodeOptions decodes the options for loader into v. Missing options leave v untouched.
func (r RuleConfig) DecodeOptions(loader string, v any) error {
	node, ok := r.Options[loader]
	if !ok {
		return nil
	}
	return node.Decode(v)
}

// Label returns the rule name, or its test pattern when unnamed.
func (r RuleConfig) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Test
}

// StylesConfig controls style chunk extraction.
type StylesConfig struct {
	Filename     string `yaml:"filename"`
	AllChunks    *bool  `yaml:"all_chunks,omitempty"`
	DefaultChunk string `yaml:"default_chunk,omitempty"`
}

// AllChunksEnabled reports whether style files outside any entry are aggregated.
func (s StylesConfig) AllChunksEnabled() bool {
	return s.AllChunks == nil || *s.AllChunks
}

// PluginConfig is one post-processing step. Order in the list is significant.
type PluginConfig struct {
	Name    string    `yaml:"name"`
	Options yaml.Node `yaml:"options,omitempty"`
}

// Decode decodes the plugin options into v. Absent options leave v untouched.
func (p PluginConfig) Decode(v any) error {
	if p.Options.Kind == 0 {
		return nil
	}
	return p.Options.Decode(v)
}

// DevServerConfig configures the in-memory development server.
type DevServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ContentBase string `yaml:"content_base,omitempty"`
	Compress    bool   `yaml:"compress"`
	Stats       string `yaml:"stats,omitempty"` // errors-only|normal
	LiveReload  *bool  `yaml:"live_reload,omitempty"`
	Metrics     bool   `yaml:"metrics"`
}

// LiveReloadEnabled defaults to true.
func (d DevServerConfig) LiveReloadEnabled() bool {
	return d.LiveReload == nil || *d.LiveReload
}

// ErrorsOnly reports whether per-build success logs are demoted.
func (d DevServerConfig) ErrorsOnly() bool { return d.Stats == StatsErrorsOnly }

const (
	StatsErrorsOnly = "errors-only"
	StatsNormal     = "normal"
)

// WatchConfig configures rebuild-on-change.
type WatchConfig struct {
	AggregateTimeout time.Duration `yaml:"aggregate_timeout"`
	Poll             time.Duration `yaml:"poll,omitempty"`
	Ignored          []string      `yaml:"ignored,omitempty"`
}

// OptimizationConfig holds production-only toggles.
type OptimizationConfig struct {
	Minify MinifyMode `yaml:"minify"`
}

// ReportConfig controls build report persistence.
type ReportConfig struct {
	Directory string `yaml:"directory"`
	Disable   bool   `yaml:"disable,omitempty"`
}

// NotifyConfig publishes build completion events when NATSURL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Abs resolves p against the project context.
func (c *Config) Abs(p string) string {
	if p == "" {
		return c.Context
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Context, filepath.FromSlash(p))
}

// SourceDir is the absolute source root.
func (c *Config) SourceDir() string { return c.Abs(c.Source) }

// OutputDir is the absolute distribution root.
func (c *Config) OutputDir() string { return c.Abs(c.Output.Path) }

// ReportDir is the absolute report directory, or "" when reports are disabled.
func (c *Config) ReportDir() string {
	if c.Report.Disable || c.Report.Directory == "" {
		return ""
	}
	return c.Abs(c.Report.Directory)
}

// ContentBase is the on-disk fallback served by the dev server.
func (c *Config) ContentBase() string {
	if c.DevServer.ContentBase == "" {
		return c.OutputDir()
	}
	return c.Abs(c.DevServer.ContentBase)
}

// EntryNames returns entry keys in sorted order.
func (c *Config) EntryNames() []string {
	names := make([]string, 0, len(c.Entry))
	for name := range c.Entry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SourceMaps reports whether source maps are emitted.
func (c *Config) SourceMaps() bool { return c.Devtool == "source-map" }

// PluginIndex returns the position of the first plugin with name, or -1.
func (c *Config) PluginIndex(name string) int {
	return slices.IndexFunc(c.Plugins, func(p PluginConfig) bool { return p.Name == name })
}

// Load loads, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, foundationerrors.NotFoundError("configuration file not found").
			WithContext("file", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to read config file").
			WithContext("file", configPath).
			Build()
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return Parse(data, filepath.Dir(abs))
}

// Parse decodes configuration bytes. baseDir is the default context.
func Parse(data []byte, baseDir string) (*Config, error) {
	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to unmarshal config").
			Fatal().
			Build()
	}

	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, foundationerrors.ConfigError(
			fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).
			Build()
	}

	if cfg.Context == "" {
		cfg.Context = baseDir
	} else if !filepath.IsAbs(cfg.Context) {
		cfg.Context = filepath.Join(baseDir, cfg.Context)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("file", configPath).
			Build()
	}

	cfg := Default()
	cfg.Context = ""

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# assetpipe configuration\n# Paths are relative to the directory containing this file.\n\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("file", configPath).
			Build()
	}
	return nil
}
