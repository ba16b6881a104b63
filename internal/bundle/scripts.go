package bundle

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

const (
	styleImportFilter = `\.(s[ac]ss|css)$`
	scriptFilter      = `\.(m?js|jsx|tsx?)$`
)

// ScriptResult holds one bundle per entry plus the style files each entry
// imported, in import order.
type ScriptResult struct {
	Bundles []Output
	Styles  map[string][]string
}

// Scripts bundles every entry in a single esbuild build. filename is the
// output naming template (for example js/[name].bundle.js).
func Scripts(ctx context.Context, opts Options, entries map[string]string, filename string) (*ScriptResult, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	// esbuild output path (abs, without extension) -> entry name
	outByEntry := make(map[string]string, len(names))
	points := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		outPath := path.Join(path.Dir(rules.Name(filename, rules.NameParts{Name: name, Ext: "js"})), name)
		points = append(points, api.EntryPoint{
			InputPath:  filepath.Join(opts.SourceRoot, filepath.FromSlash(entries[name])),
			OutputPath: outPath,
		})
		outByEntry[filepath.Join(opts.OutputRoot, filepath.FromSlash(outPath))] = name
	}

	failure := &firstError{}
	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: points,
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Outdir:              opts.OutputRoot,
		AbsWorkingDir:       opts.SourceRoot,
		Platform:            api.PlatformBrowser,
		Format:              api.FormatIIFE,
		Target:              api.ESNext,
		Sourcemap:           externalMaps(opts.SourceMaps),
		SourcesContent:      api.SourcesContentInclude,
		MinifyWhitespace:    opts.Minify,
		MinifyIdentifiers:   opts.Minify,
		MinifySyntax:        opts.Minify,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{scriptPlugin(ctx, opts, failure)},
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		if err := failure.get(); err != nil {
			return nil, err
		}
		return nil, foundationerrors.WrapError(transform.MessagesError(result.Errors), foundationerrors.CategoryTransform, "script bundling failed").
			Immediate().
			Build()
	}

	meta, err := parseMetafile(result.Metafile)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "cannot read esbuild metafile").Fatal().Build()
	}

	maps := make(map[string][]byte)
	for _, f := range result.OutputFiles {
		if filepath.Ext(f.Path) == ".map" {
			maps[f.Path[:len(f.Path)-len(".map")]] = f.Contents
		}
	}

	res := &ScriptResult{Styles: make(map[string][]string, len(names))}
	for _, f := range result.OutputFiles {
		if filepath.Ext(f.Path) != ".js" {
			continue
		}
		name, ok := outByEntry[f.Path[:len(f.Path)-len(".js")]]
		if !ok {
			continue
		}
		entryKey := meta.Outputs[relSlash(opts.SourceRoot, f.Path)].EntryPoint
		if entryKey == "" {
			entryKey = relSlash(opts.SourceRoot, filepath.Join(opts.SourceRoot, filepath.FromSlash(entries[name])))
		}
		scripts, styles := meta.walk(entryKey)
		res.Styles[name] = styles

		final := rules.Name(filename, rules.NameParts{Name: name, Ext: "js", Content: f.Contents})
		out := Output{
			Path:     final,
			Contents: f.Contents,
			Chunk:    name,
			Class:    ClassScript,
			Sources:  sourceRels(opts.SourceRoot, scripts),
		}
		if m, ok := maps[f.Path]; ok {
			out.Map = m
			out.Contents = appendMapComment(out.Contents, path.Base(final)+".map", false)
		}
		res.Bundles = append(res.Bundles, out)
	}

	if len(res.Bundles) != len(names) {
		return nil, foundationerrors.InternalError(
			fmt.Sprintf("expected %d script bundles, esbuild produced %d", len(names), len(res.Bundles))).Build()
	}
	sort.Slice(res.Bundles, func(i, j int) bool { return res.Bundles[i].Chunk < res.Bundles[j].Chunk })
	return res, nil
}

func scriptPlugin(ctx context.Context, opts Options, failure *firstError) api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			// Style imports become empty modules; the stylesheet goes to the entry's chunk.
			build.OnResolve(api.OnResolveOptions{Filter: styleImportFilter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.PluginData == (resolving{}) {
					return api.OnResolveResult{}, nil
				}
				res := build.Resolve(args.Path, api.ResolveOptions{
					Importer:   args.Importer,
					ResolveDir: args.ResolveDir,
					Kind:       args.Kind,
					PluginData: resolving{},
				})
				if len(res.Errors) > 0 {
					return api.OnResolveResult{}, transform.MessagesError(res.Errors)
				}
				return api.OnResolveResult{
					Path:      relSlash(opts.SourceRoot, res.Path),
					Namespace: styleStubNamespace,
				}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: styleStubNamespace}, func(api.OnLoadArgs) (api.OnLoadResult, error) {
				empty := ""
				return api.OnLoadResult{Contents: &empty, Loader: api.LoaderJS}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: scriptFilter, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				rel := relSlash(opts.SourceRoot, args.Path)
				_, chain := opts.chainFor(rel, string(config.RuleScript))
				if chain == nil {
					return api.OnLoadResult{}, nil
				}
				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				asset := &transform.Asset{Path: args.Path, Rel: rel, Contents: data}
				if err := chain.Apply(ctx, asset); err != nil {
					failure.set(err)
					return api.OnLoadResult{}, err
				}
				contents := string(asset.Contents)
				return api.OnLoadResult{
					Contents:   &contents,
					ResolveDir: filepath.Dir(args.Path),
					Loader:     transform.ScriptLoader(rel),
				}, nil
			})
		},
	}
}

func externalMaps(enabled bool) api.SourceMap {
	if enabled {
		return api.SourceMapExternal
	}
	return api.SourceMapNone
}

func appendMapComment(b []byte, mapName string, css bool) []byte {
	out := make([]byte, 0, len(b)+len(mapName)+32)
	out = append(out, b...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	if css {
		return append(out, "/*# sourceMappingURL="+mapName+" */\n"...)
	}
	return append(out, "//# sourceMappingURL="+mapName+"\n"...)
}

// sourceRels turns metafile keys (relative to the working dir) into source paths.
func sourceRels(root string, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, relSlash(root, filepath.Join(root, filepath.FromSlash(k))))
	}
	return out
}
