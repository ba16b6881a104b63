package transform

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// MessagesError joins esbuild messages into one error with file:line locations.
func MessagesError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.PluginName != "" {
			text = "[" + m.PluginName + "] " + text
		}
		if loc := m.Location; loc != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, text))
			continue
		}
		lines = append(lines, text)
	}
	return errors.New(strings.Join(lines, "\n"))
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"safari":  api.EngineSafari,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"ie":      api.EngineIE,
}

var enginePattern = regexp.MustCompile(`^([a-z]+)\s*([0-9][0-9.]*)$`)

// ParseEngines converts targets such as "chrome58" or "safari 11" into esbuild engines.
func ParseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := enginePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q", m[1])
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"env":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a preset name to an esbuild target.
func ParseTarget(preset string) (api.Target, error) {
	t, ok := esTargets[strings.ToLower(strings.TrimSpace(preset))]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unsupported preset %q", preset)
	}
	return t, nil
}

// ScriptLoader picks the esbuild loader for a script path.
func ScriptLoader(rel string) api.Loader {
	switch path.Ext(rel) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}

func sourceMapMode(enabled bool) api.SourceMap {
	if enabled {
		return api.SourceMapInline
	}
	return api.SourceMapNone
}
