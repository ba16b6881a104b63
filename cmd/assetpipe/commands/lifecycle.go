package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/devserver"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// StartCmd implements the 'start' command.
type StartCmd struct{}

func (s *StartCmd) Run(g *Global, root *CLI) error {
	return runLifecycle(g, root, config.ModeStart)
}

// ServerCmd implements the 'server' command.
type ServerCmd struct {
	Host string `help:"Override dev_server.host"`
	Port int    `help:"Override dev_server.port"`
}

func (s *ServerCmd) Run(g *Global, root *CLI) error {
	opts, err := loadOptions(root, config.ModeServer)
	if err != nil {
		return err
	}
	if s.Host != "" {
		opts.Config.DevServer.Host = s.Host
	}
	if s.Port != 0 {
		opts.Config.DevServer.Port = s.Port
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchAndServe(ctx, g, opts)
}

// RunCmd selects the lifecycle from the environment, the way package
// manager scripts invoke the pipeline.
type RunCmd struct{}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	return runLifecycle(g, root, config.ModeFromEnv())
}

func runLifecycle(g *Global, root *CLI, mode config.Mode) error {
	opts, err := loadOptions(root, mode)
	if err != nil {
		return err
	}
	if mode == config.ModeBuild {
		return buildOnce(context.Background(), g, opts)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchAndServe(ctx, g, opts)
}

// watchAndServe serves (in server mode) and runs the initial build, then
// rebuilds on change until ctx ends. In server mode output stays in memory
// and the server is up before the first build lands. Build failures are
// reported but never end the run.
func watchAndServe(ctx context.Context, g *Global, opts config.Options, extra ...build.Option) error {
	logger := g.logger()
	config.WriteBanner(g.Out, opts.Mode)

	rt := newSession(opts, logger)
	defer rt.Close()

	var srv *devserver.Server
	if opts.InMemory() {
		mem := build.NewMemoryEmitter()
		srv = devserver.New(opts.Config, mem, devserver.WithRegistry(rt.registry), devserver.WithLogger(logger))
		extra = append(extra, build.WithEmitter(mem), build.WithObserver(srv))
	}
	b, err := rt.newBuilder(opts, extra...)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context, _ string) error {
		_, err := b.Build(ctx)
		return err
	}
	w, err := watch.New(opts.Config.SourceDir(), opts.Config.Watch, rebuild,
		watch.WithRecorder(rt.recorder), watch.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	start := func(fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
	if srv != nil {
		start(srv.Run)
	}

	if err := rebuild(ctx, "initial"); err != nil && ctx.Err() == nil {
		logger.Warn("Initial build failed; waiting for changes", logfields.Error(err))
	}
	if ctx.Err() == nil {
		start(w.Run)
	}
	wg.Wait()
	close(errs)
	return <-errs
}
