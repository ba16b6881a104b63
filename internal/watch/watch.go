package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Rebuild triggers.
const (
	TriggerNotify = "fsnotify"
	TriggerPoll   = "poll"
)

// RebuildFunc runs one rebuild. Errors are logged by the caller; the watcher
// keeps running regardless.
type RebuildFunc func(ctx context.Context, trigger string) error

// Watcher turns source changes into serialized rebuilds.
type Watcher struct {
	root     string
	cfg      config.WatchConfig
	ignore   build.IgnoreMatcher
	extra    build.IgnoreMatcher
	rebuild  RebuildFunc
	recorder metrics.Recorder
	logger   *slog.Logger

	requests chan struct{}

	mu          sync.Mutex
	timer       *time.Timer
	lastTrigger string
	fingerprint string

	readyOnce sync.Once
	ready     chan struct{}
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithRecorder counts rebuilds by trigger.
func WithRecorder(r metrics.Recorder) Option { return func(w *Watcher) { w.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// New watches root. The rebuild function is never called concurrently.
func New(root string, cfg config.WatchConfig, rebuild RebuildFunc, opts ...Option) (*Watcher, error) {
	if rebuild == nil {
		return nil, foundationerrors.ValidationError("rebuild function is required").Build()
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return nil, foundationerrors.NotFoundError("watch root is not a directory").WithContext("path", root).Build()
	}
	if cfg.AggregateTimeout <= 0 {
		cfg.AggregateTimeout = 300 * time.Millisecond
	}
	w := &Watcher{
		root:     root,
		cfg:      cfg,
		ignore:   build.LoadIgnoreMatcher(root),
		extra:    build.NewIgnoreMatcher(cfg.Ignored),
		rebuild:  rebuild,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		requests: make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Ready is closed once Run watches the tree.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is done. A rebuild in progress when ctx ends is
// canceled through its context.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot start file watcher").Build()
	}
	defer func() { _ = fsw.Close() }()
	w.addDirsRecursive(fsw, w.root)

	if w.cfg.Poll > 0 {
		w.setFingerprint(w.currentFingerprint())
		stop, err := w.startPoller()
		if err != nil {
			return err
		}
		defer stop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer wg.Wait()
	defer w.stopTimer()

	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("Watching for changes", logfields.Path(w.root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

// Request schedules a rebuild once no further request arrives within the
// aggregate timeout.
func (w *Watcher) Request(trigger string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastTrigger = trigger
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.AggregateTimeout, func() {
		select {
		case w.requests <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// worker runs one rebuild at a time. Requests arriving during a rebuild
// collapse into the single buffered slot, giving exactly one follow-up.
func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.requests:
		}
		w.mu.Lock()
		trigger := w.lastTrigger
		w.mu.Unlock()

		w.recorder.IncRebuild(trigger)
		w.logger.Info("Change detected; rebuilding", logfields.Trigger(trigger))
		if err := w.rebuild(ctx, trigger); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("rebuild failed", logfields.Trigger(trigger), logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	rel, ok := w.relative(ev.Name)
	if !ok {
		return
	}
	isDir := false
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if w.ignored(rel, isDir) {
		return
	}
	if isDir {
		w.addDirsRecursive(fsw, ev.Name)
	}
	w.logger.Debug("File change detected", logfields.Path(rel), logfields.Op(ev.Op.String()))
	w.Request(TriggerNotify)
}

func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored applies the editor file filter, the source ignore file and the
// configured watch patterns to every segment of rel.
func (w *Watcher) ignored(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		if ShouldIgnoreName(part) {
			return true
		}
		prefix := strings.Join(parts[:i+1], "/")
		dir := isDir || i < len(parts)-1
		if w.ignore.Excludes(prefix, dir) || w.extra.Excludes(prefix, dir) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok && w.ignored(rel, true) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.logger.Warn("watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// ShouldIgnoreName reports whether a file name is hidden or an editor
// temporary that must not trigger rebuilds.
func ShouldIgnoreName(base string) bool {
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db" || base == "4913":
		return true
	}
	return false
}

func (w *Watcher) startPoller() (func(), error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryRuntime, "failed to create poll scheduler").Build()
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.cfg.Poll),
		gocron.NewTask(w.pollOnce),
		gocron.WithName("watch-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryRuntime, "failed to schedule poll job").Build()
	}
	s.Start()
	return func() {
		if err := s.Shutdown(); err != nil {
			w.logger.Warn("poll scheduler shutdown", logfields.Error(err))
		}
	}, nil
}
