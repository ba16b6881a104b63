package build

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/rules"
	"git.home.luguber.info/inful/assetpipe/internal/sourceinfo"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// Builder runs build passes for one configuration. Build calls are
// serialized; concurrent builds against one output are not supported.
type Builder struct {
	mu sync.Mutex

	cfg      *config.Config
	opts     config.Options
	env      transform.Env
	router   *rules.Router
	chains   map[int]*transform.Chain
	plugins  []Plugin
	emitter  Emitter
	observer BuildObserver
	recorder metrics.Recorder
	source   *sourceinfo.Info
	persist  bool
	logger   *slog.Logger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithEmitter replaces the default emitter (disk, or memory for the
// server lifecycle).
func WithEmitter(e Emitter) Option { return func(b *Builder) { b.emitter = e } }

// WithObserver adds a build observer.
func WithObserver(o BuildObserver) Option {
	return func(b *Builder) {
		if existing, ok := b.observer.(Observers); ok {
			b.observer = append(existing, o)
			return
		}
		b.observer = Observers{b.observer, o}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.recorder = r } }

// WithoutReport disables report persistence regardless of configuration.
func WithoutReport() Option { return func(b *Builder) { b.persist = false } }

// WithLogger sets the logger used for build progress.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// New prepares a Builder: rules are compiled, a chain is constructed for
// every rule and plugins are instantiated in declared order.
func New(opts config.Options, options ...Option) (*Builder, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, foundationerrors.ConfigError("configuration required").Build()
	}
	b := &Builder{
		cfg:      cfg,
		opts:     opts,
		observer: NoopObserver{},
		recorder: metrics.NoopRecorder{},
		persist:  !cfg.Report.Disable && cfg.ReportDir() != "",
		logger:   slog.Default(),
		env: transform.Env{
			SourceRoot: cfg.SourceDir(),
			SourceMaps: cfg.SourceMaps(),
			Minify:     opts.Minify(),
			Production: opts.Production,
		},
	}
	for _, o := range options {
		o(b)
	}
	if b.emitter == nil {
		if opts.InMemory() {
			b.emitter = NewMemoryEmitter()
		} else {
			b.emitter = NewDiskEmitter(cfg.OutputDir())
		}
	}
	b.observer = Observers{recorderObserver{rec: b.recorder}, b.observer}

	router, err := rules.Compile(cfg.Rules)
	if err != nil {
		return nil, err
	}
	b.router = router

	b.chains = make(map[int]*transform.Chain, len(router.Rules()))
	for _, r := range router.Rules() {
		for _, name := range r.Use() {
			if !transform.Has(name) {
				return nil, foundationerrors.ConfigError("unknown loader").
					WithContext("rule", r.Name()).
					WithContext("loader", name).
					WithContext("registered", transform.Names()).
					Build()
			}
		}
		chain, err := transform.NewChain(b.env, r.Config)
		if err != nil {
			return nil, err
		}
		b.chains[r.Index] = chain
	}

	for _, pc := range cfg.Plugins {
		p, err := NewPlugin(cfg, opts, pc)
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "cannot construct plugin").
				Fatal().
				WithContext("plugin", pc.Name).
				Build()
		}
		b.plugins = append(b.plugins, p)
	}

	if info, err := sourceinfo.Head(cfg.Context); err == nil {
		b.source = &info
	} else if !errors.Is(err, sourceinfo.ErrNotRepository) {
		b.logger.Debug("Source revision unavailable", logfields.Error(err))
	}
	return b, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Options returns the lifecycle options.
func (b *Builder) Options() config.Options { return b.opts }

// Emitter returns the active emitter.
func (b *Builder) Emitter() Emitter { return b.emitter }

// Router returns the compiled rule router.
func (b *Builder) Router() *rules.Router { return b.router }

// BuildState carries mutable state across stages.
type BuildState struct {
	Builder     *Builder
	Compilation *Compilation
	Report      *Report

	// Routed groups discovered files by the type of the rule they matched.
	Routed map[config.RuleType][]string
	// Imported holds, per entry, the style files its scripts import in order.
	Imported map[string][]string

	observer BuildObserver
	recorder metrics.Recorder
}

// Build runs one pass. The returned report is non-nil even on failure;
// on failure the error is classified and the previous output is kept.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	report := newReport(b.opts)
	report.Source = b.source
	comp := newCompilation(b)
	comp.buildID = report.BuildID
	bs := &BuildState{
		Builder:     b,
		Compilation: comp,
		Report:      report,
		Routed:      map[config.RuleType][]string{},
		observer:    b.observer,
		recorder:    b.recorder,
	}

	log := b.logger.With(logfields.BuildID(report.BuildID), logfields.Mode(string(b.opts.Mode)))
	log.Debug("Build started")

	err := runStages(ctx, bs, pipeline())
	if err != nil {
		b.emitter.Abort()
	}
	report.finish()
	b.observer.OnBuildComplete(report)

	if b.persist {
		if perr := report.Persist(b.cfg.ReportDir()); perr != nil {
			log.Warn("Failed to persist build report", logfields.Error(perr))
		}
	}

	if err != nil {
		log.Error("Build failed", logfields.Error(err), logfields.DurationMS(float64(report.Duration().Milliseconds())))
		return report, buildFailed(err)
	}
	level := slog.LevelInfo
	if b.cfg.DevServer.ErrorsOnly() && b.opts.Watching() {
		level = slog.LevelDebug
	}
	log.Log(ctx, level, "Build completed",
		"outcome", string(report.Outcome),
		logfields.Count(report.EmittedTotal()),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report, nil
}

// buildFailed wraps a stage error as "build failed", keeping the category
// and context of the underlying classified cause.
func buildFailed(err error) error {
	var se *StageError
	if errors.As(err, &se) && se.Kind == StageErrorCanceled {
		return err
	}
	category := foundationerrors.CategoryBuild
	builder := foundationerrors.WrapError(err, category, "build failed").Fatal()
	if ce, ok := foundationerrors.AsClassified(err); ok {
		builder = foundationerrors.WrapError(err, ce.Category(), "build failed").Fatal()
		keys := make([]string, 0, len(ce.Context()))
		for k := range ce.Context() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := ce.Context().Get(k)
			builder = builder.WithContext(k, v)
		}
	}
	if se != nil {
		builder = builder.WithContext("stage", string(se.Stage))
	}
	return builder.Build()
}
