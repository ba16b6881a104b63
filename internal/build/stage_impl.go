package build

import (
	"context"
	"errors"
	"os"

	"git.home.luguber.info/inful/assetpipe/internal/bundle"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

func stagePrepareOutput(ctx context.Context, bs *BuildState) error {
	return bs.Builder.emitter.Begin(ctx)
}

func stageDiscoverSources(_ context.Context, bs *BuildState) error {
	files, err := Discover(bs.Builder.cfg.SourceDir())
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot walk source root").
			WithContext("path", bs.Builder.cfg.SourceDir()).
			Build()
	}
	bs.Compilation.Files = files
	bs.Report.Files = len(files)
	return nil
}

// stageRouteSources groups discovered files by the first matching rule.
// Unmatched files are neither transformed nor emitted.
func stageRouteSources(_ context.Context, bs *BuildState) error {
	for _, rel := range bs.Compilation.Files {
		rule := bs.Builder.router.Match(rel)
		if rule == nil {
			bs.Report.Unmatched++
			bs.Builder.logger.Debug("No rule matches file", logfields.File(rel))
			continue
		}
		bs.Report.Routed++
		bs.Routed[rule.Type()] = append(bs.Routed[rule.Type()], rel)
	}
	return nil
}

func (bs *BuildState) bundleOptions() bundle.Options {
	b := bs.Builder
	return bundle.Options{
		SourceRoot: b.cfg.SourceDir(),
		OutputRoot: b.cfg.OutputDir(),
		SourceMaps: b.env.SourceMaps,
		Minify:     b.env.Minify,
		Router:     b.router,
		Chains:     b.chains,
	}
}

func (bs *BuildState) addOutputs(outs []bundle.Output, class string) error {
	for _, o := range outs {
		cls := class
		if o.Class == bundle.ClassAsset {
			cls = ClassAsset
		}
		source := ""
		if cls == ClassScript && len(o.Sources) > 0 {
			source = bs.Builder.cfg.Entry[o.Chunk]
		}
		if err := bs.Compilation.Add(&Asset{
			Path:     o.Path,
			Contents: o.Contents,
			Class:    cls,
			Source:   source,
			Chunk:    o.Chunk,
		}); err != nil {
			return err
		}
		if o.Map != nil {
			if err := bs.Compilation.Add(&Asset{Path: o.MapPath(), Contents: o.Map, Class: ClassMap, Chunk: o.Chunk}); err != nil {
				return err
			}
		}
	}
	return nil
}

// stageBundleScripts produces exactly one script bundle per entry.
func stageBundleScripts(ctx context.Context, bs *BuildState) error {
	cfg := bs.Builder.cfg
	res, err := bundle.Scripts(ctx, bs.bundleOptions(), cfg.Entry, cfg.Output.Filename)
	if err != nil {
		return err
	}
	bs.Imported = res.Styles
	bs.Report.Entries = len(res.Bundles)
	for _, o := range res.Bundles {
		bs.Builder.logger.Debug("Bundled entry", logfields.Entry(o.Chunk), logfields.Path(o.Path), logfields.Count(len(o.Sources)))
	}
	return bs.addOutputs(res.Bundles, ClassScript)
}

// stageBundleStyles aggregates style files into one stylesheet per chunk.
func stageBundleStyles(ctx context.Context, bs *BuildState) error {
	cfg := bs.Builder.cfg
	opts := bs.bundleOptions()
	styles := bs.Routed[config.RuleStyle]
	var reached map[string]bool
	if cfg.Styles.AllChunksEnabled() {
		var err error
		if reached, err = bundle.StyleDependencies(opts.SourceRoot, styles); err != nil {
			return err
		}
	}
	chunks := bundle.AssignStyles(bs.Imported, styles, reached, cfg.Styles.DefaultChunk, cfg.Styles.AllChunksEnabled())
	bs.Report.Chunks = len(chunks)
	outs, err := bundle.Styles(ctx, opts, chunks, cfg.Styles.Filename)
	if err != nil {
		return err
	}
	return bs.addOutputs(outs, ClassStyle)
}

// stageEmitFiles runs file rules: each matched file goes through its chain
// and lands at the rule's output path. Template rules are rendered only by
// the html plugin.
func stageEmitFiles(ctx context.Context, bs *BuildState) error {
	for _, rel := range bs.Routed[config.RuleFile] {
		if err := ctx.Err(); err != nil {
			return err
		}
		rule, chain := bs.Compilation.ChainFor(rel)
		abs := bs.Compilation.SourcePath(rel)
		data, err := os.ReadFile(abs)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read source file").
				WithContext("file", rel).
				Build()
		}
		asset := &transform.Asset{Path: abs, Rel: rel, Contents: data}
		if err := chain.Apply(ctx, asset); err != nil {
			return err
		}
		out := rule.OutputPath(rel, asset.Contents)
		if err := bs.Compilation.Add(&Asset{
			Path:      out,
			Contents:  asset.Contents,
			Class:     ClassFile,
			Source:    rel,
			PublicURL: rule.PublicURL(out),
		}); err != nil {
			return err
		}
	}
	return nil
}

// stageRunPlugins applies plugins in declared order. Warnings are collected
// and reported after the last plugin; anything else aborts.
func stageRunPlugins(ctx context.Context, bs *BuildState) error {
	var warnings []error
	for _, p := range bs.Builder.plugins {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Apply(ctx, bs.Compilation); err != nil {
			if foundationerrors.GetSeverity(err) == foundationerrors.SeverityWarning && foundationerrors.IsClassified(err) {
				bs.Builder.logger.Warn("Plugin reported a warning", logfields.Plugin(p.Name()), logfields.Error(err))
				warnings = append(warnings, err)
				bs.Report.Plugins = append(bs.Report.Plugins, p.Name())
				continue
			}
			if foundationerrors.IsClassified(err) || errors.Is(err, context.Canceled) {
				return err
			}
			return foundationerrors.WrapError(err, foundationerrors.CategoryPlugin, "plugin failed").
				WithContext("plugin", p.Name()).
				Build()
		}
		bs.Report.Plugins = append(bs.Report.Plugins, p.Name())
	}
	if len(warnings) > 0 {
		return newWarnStageError(StageRunPlugins, errors.Join(warnings...))
	}
	return nil
}

// stageEmitOutput writes the manifest and hands the compilation to the emitter.
func stageEmitOutput(ctx context.Context, bs *BuildState) error {
	comp := bs.Compilation
	if name := bs.Builder.cfg.Output.Manifest; name != "" {
		data, err := BuildManifest(comp).Marshal()
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "cannot encode manifest").Build()
		}
		comp.Put(&Asset{Path: name, Contents: data, Class: ClassManifest})
	}
	for _, a := range comp.Assets() {
		bs.Report.Emitted[a.Class]++
	}
	return bs.Builder.emitter.Commit(ctx, comp)
}
