package config

import (
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSource           = "_develop"
	defaultOutputPath       = "_distribute"
	defaultScriptFilename   = "js/[name].bundle.js"
	defaultStyleFilename    = "css/[name].bundle.css"
	defaultDevtool          = "source-map"
	defaultHost             = "localhost"
	defaultPort             = 9001
	defaultAggregateTimeout = 300 * time.Millisecond
	defaultReportDirectory  = ".assetpipe"
	defaultNotifySubject    = "assetpipe.build"
)

// Default returns the built-in configuration: the static site layout with
// scss, es2015 scripts, pug templates, images and fonts.
func Default() Config {
	cfg := Config{
		Version: CurrentVersion,
		Source:  defaultSource,
		Devtool: defaultDevtool,
		Entry:   map[string]string{"app": "js/app.js"},
		Output: OutputConfig{
			Path:     defaultOutputPath,
			Filename: defaultScriptFilename,
			Manifest: "manifest.json",
		},
		Rules: []RuleConfig{
			{
				Name: "styles",
				Test: `\.scss$`,
				Type: RuleStyle,
				Use:  []string{"css", "postcss", "sass"},
				Options: map[string]yaml.Node{
					"css":  node(map[string]any{"url": false, "source_map": true}),
					"sass": node(map[string]any{"source_map": true, "source_map_contents": true, "output_style": "expanded"}),
				},
			},
			{
				Name:    "scripts",
				Test:    `\.js$`,
				Exclude: `(node_modules|bower_components)`,
				Type:    RuleScript,
				Use:     []string{"babel"},
				Options: map[string]yaml.Node{
					"babel": node(map[string]any{"presets": []string{"es2015"}}),
				},
			},
			{
				Name:    "images",
				Test:    `\.(png|jpe?g|gif|svg|ico)$`,
				Include: []string{"images/"},
				Type:    RuleFile,
				Use:     []string{"file"},
				Output:  RuleOutput{Name: "[name].[ext]", Path: "images/"},
			},
			{
				Name:   "html",
				Test:   `\.(html)$`,
				Type:   RuleFile,
				Use:    []string{"file"},
				Output: RuleOutput{Name: "[name].[ext]", Path: "/"},
			},
			{
				Name: "pug",
				Test: `\.pug$`,
				Type: RuleTemplate,
				Use:  []string{"html", "pug"},
			},
			{
				Name:    "fonts",
				Test:    `\.(eot|svg|ttf|woff|woff2)$`,
				Include: []string{"fonts/"},
				Type:    RuleFile,
				Use:     []string{"file"},
				Output:  RuleOutput{Name: "[name].[ext]", Path: "fonts/", PublicPath: "../"},
			},
		},
		Styles: StylesConfig{Filename: defaultStyleFilename},
		Plugins: []PluginConfig{
			{Name: "clean", Options: node(map[string]any{"paths": []string{"public"}})},
			{Name: "copy", Options: node(map[string]any{
				"patterns": []map[string]string{{"from": "images", "to": "images"}},
			})},
			{Name: "imagemin", Options: node(map[string]any{
				"optipng":  map[string]any{"optimization_level": 7},
				"gifsicle": map[string]any{"optimization_level": 3},
				"jpeg":     map[string]any{"quality": 75, "progressive": true},
				"svgo":     map[string]any{"remove_unknowns_and_defaults": false, "cleanup_ids": false},
			})},
			{Name: "html", Options: node(map[string]any{
				"filename": "index.html",
				"template": "templates/index.pug",
				"inject":   false,
			})},
			{Name: "inline-svg", Options: node(map[string]any{
				"svgo": map[string]any{"remove_title": false, "remove_view_box": true},
			})},
		},
		DevServer: DevServerConfig{
			Host:  defaultHost,
			Port:  defaultPort,
			Stats: StatsErrorsOnly,
		},
		Watch:        WatchConfig{AggregateTimeout: defaultAggregateTimeout},
		Optimization: OptimizationConfig{Minify: MinifyNever},
		Report:       ReportConfig{Directory: defaultReportDirectory},
	}
	return cfg
}

func node(v any) yaml.Node {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		panic(err)
	}
	return n
}

// applyDefaults fills zero values. Lists (rules, plugins) are taken as given
// when present so a file can opt out of the built-in chains entirely.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}
	if cfg.Entry == nil {
		cfg.Entry = def.Entry
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = def.Output.Path
	}
	if cfg.Output.Filename == "" {
		cfg.Output.Filename = def.Output.Filename
	}
	if cfg.Rules == nil {
		cfg.Rules = def.Rules
	}
	if cfg.Plugins == nil {
		cfg.Plugins = def.Plugins
	}
	if cfg.Styles.Filename == "" {
		cfg.Styles.Filename = def.Styles.Filename
	}
	if cfg.Styles.DefaultChunk == "" {
		if names := cfg.EntryNames(); len(names) > 0 {
			cfg.Styles.DefaultChunk = names[0]
		}
	}
	if cfg.DevServer.Host == "" {
		cfg.DevServer.Host = def.DevServer.Host
	}
	if cfg.DevServer.Port == 0 {
		cfg.DevServer.Port = def.DevServer.Port
	}
	if cfg.DevServer.Stats == "" {
		cfg.DevServer.Stats = def.DevServer.Stats
	}
	if cfg.Watch.AggregateTimeout <= 0 {
		cfg.Watch.AggregateTimeout = def.Watch.AggregateTimeout
	}
	if m := NormalizeMinifyMode(string(cfg.Optimization.Minify)); m != "" {
		cfg.Optimization.Minify = m
	}
	if cfg.Report.Directory == "" {
		cfg.Report.Directory = def.Report.Directory
	}
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultNotifySubject
	}
	cfg.Context = filepath.Clean(cfg.Context)
}
