package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// urlAssetLoaders handles url() dependencies of rules that resolve them.
var urlAssetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".ico":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".eot":   api.LoaderFile,
	".ttf":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
}

// Styles aggregates each chunk into one stylesheet named by filename
// (for example css/[name].bundle.css). chunks maps chunk name to member
// paths relative to the source root.
func Styles(ctx context.Context, opts Options, chunks map[string][]string, filename string) ([]Output, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(chunks))
	for name := range chunks {
		names = append(names, name)
	}
	sort.Strings(names)

	outByChunk := make(map[string]string, len(names))
	points := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		outPath := path.Join(path.Dir(rules.Name(filename, rules.NameParts{Name: name, Ext: "css"})), name)
		points = append(points, api.EntryPoint{InputPath: chunkNamespace + ":" + name, OutputPath: outPath})
		outByChunk[filepath.Join(opts.OutputRoot, filepath.FromSlash(outPath))] = name
	}

	failure := &firstError{}
	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: points,
		Bundle:              true,
		Write:               false,
		Outdir:              opts.OutputRoot,
		AbsWorkingDir:       opts.SourceRoot,
		Sourcemap:           externalMaps(opts.SourceMaps),
		SourcesContent:      api.SourcesContentInclude,
		MinifyWhitespace:    opts.Minify,
		MinifySyntax:        opts.Minify,
		Loader:              urlAssetLoaders,
		AssetNames:          "assets/[name]-[hash]",
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{stylePlugin(ctx, opts, chunks, failure)},
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		if err := failure.get(); err != nil {
			return nil, err
		}
		return nil, foundationerrors.WrapError(transform.MessagesError(result.Errors), foundationerrors.CategoryTransform, "style bundling failed").
			Immediate().
			Build()
	}

	maps := make(map[string][]byte)
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".css.map") {
			maps[strings.TrimSuffix(f.Path, ".map")] = f.Contents
		}
	}

	var outputs []Output
	for _, f := range result.OutputFiles {
		switch {
		case strings.HasSuffix(f.Path, ".map"):
			continue
		case filepath.Ext(f.Path) == ".css":
			name, ok := outByChunk[strings.TrimSuffix(f.Path, ".css")]
			if !ok {
				return nil, foundationerrors.InternalError("unexpected style output").WithContext("path", f.Path).Build()
			}
			contents := stripChunkComment(f.Contents)
			final := rules.Name(filename, rules.NameParts{Name: name, Ext: "css", Content: contents})
			out := Output{
				Path:     final,
				Contents: contents,
				Chunk:    name,
				Class:    ClassStyle,
				Sources:  append([]string(nil), chunks[name]...),
			}
			if m, ok := maps[f.Path]; ok {
				out.Map = m
				out.Contents = appendMapComment(out.Contents, path.Base(final)+".map", true)
			}
			outputs = append(outputs, out)
		default:
			outputs = append(outputs, Output{
				Path:     relSlash(opts.OutputRoot, f.Path),
				Contents: f.Contents,
				Class:    ClassAsset,
			})
		}
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Path < outputs[j].Path })
	return outputs, nil
}

// chunkCommentPattern matches the path comment esbuild prints for a virtual
// chunk entry. The entry holds only @import rules, so the comment is the last
// thing in the bundle and removing it shifts no mapped line.
var chunkCommentPattern = regexp.MustCompile(`(?m)^/\* ` + chunkNamespace + `:[^*]*\*/\n?`)

func stripChunkComment(css []byte) []byte {
	out := chunkCommentPattern.ReplaceAll(css, nil)
	if trimmed := bytes.TrimRight(out, "\n"); len(trimmed) < len(out) {
		out = append(trimmed, '\n')
	}
	return out
}

func stylePlugin(ctx context.Context, opts Options, chunks map[string][]string, failure *firstError) api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			// url() handling is decided by the css loader of the importing file's rule.
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveCSSURLToken || opts.resolveURLs(args.Importer) {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})

			build.OnResolve(api.OnResolveOptions{Filter: "^" + chunkNamespace + ":"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{
					Path:      strings.TrimPrefix(args.Path, chunkNamespace+":"),
					Namespace: chunkNamespace,
				}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: chunkNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				var b strings.Builder
				for _, rel := range chunks[args.Path] {
					abs := filepath.Join(opts.SourceRoot, filepath.FromSlash(rel))
					fmt.Fprintf(&b, "@import %s;\n", strconv.Quote(filepath.ToSlash(abs)))
				}
				contents := b.String()
				return api.OnLoadResult{Contents: &contents, ResolveDir: opts.SourceRoot, Loader: api.LoaderCSS}, nil
			})

			build.OnResolve(api.OnResolveOptions{Filter: styleImportFilter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveCSSImportRule {
					return api.OnResolveResult{}, nil
				}
				if filepath.IsAbs(filepath.FromSlash(args.Path)) {
					return api.OnResolveResult{Path: filepath.FromSlash(args.Path)}, nil
				}
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
				return api.OnResolveResult{Path: res.Path}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: styleImportFilter, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				rel := relSlash(opts.SourceRoot, args.Path)
				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				_, chain := opts.chainFor(rel, string(config.RuleStyle))
				if chain == nil {
					if filepath.Ext(args.Path) != ".css" {
						return api.OnLoadResult{}, fmt.Errorf("no style rule matches %s", rel)
					}
					contents := string(data)
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderCSS}, nil
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
					Loader:     api.LoaderCSS,
				}, nil
			})
		},
	}
}

// resolveURLs consults the css loader of the rule governing importer.
func (o Options) resolveURLs(importer string) bool {
	if importer == "" {
		return true
	}
	_, chain := o.chainFor(relSlash(o.SourceRoot, importer), string(config.RuleStyle))
	if chain == nil {
		return true
	}
	step, ok := chain.Find("css")
	if !ok {
		return true
	}
	if r, ok := step.(interface{ ResolveURLs() bool }); ok {
		return r.ResolveURLs()
	}
	return true
}
