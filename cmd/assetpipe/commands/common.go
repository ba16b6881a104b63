package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/notify"

	// Registers the clean, copy, imagemin, html and inline-svg plugins.
	_ "git.home.luguber.info/inful/assetpipe/internal/plugins"
)

// Global carries process-wide state into subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config     string `short:"c" help:"Configuration file path" default:"assetpipe.yaml" type:"path"`
	Verbose    bool   `short:"v" help:"Enable verbose logging"`
	Production bool   `short:"p" help:"Treat the run as a production build (same as ASSETPIPE_ENV=production)"`

	Build   BuildCmd   `cmd:"" help:"Build assets once to the output directory"`
	Start   StartCmd   `cmd:"" help:"Build, then watch the source tree and rebuild to disk"`
	Server  ServerCmd  `cmd:"" help:"Build in memory and serve with live reload"`
	Run     RunCmd     `cmd:"" help:"Pick build, start or server from ASSETPIPE_LIFECYCLE / npm_lifecycle_event"`
	Verify  VerifyCmd  `cmd:"" help:"Rebuild in memory and diff against the output directory"`
	Package PackageCmd `cmd:"" help:"Archive the output directory as a tar.gz"`
	Init    InitCmd    `cmd:"" help:"Write a default configuration file"`
	Rules   RulesCmd   `cmd:"" help:"Show how discovered source files are routed to rules"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	g.Logger = logger
	if g.Out == nil {
		g.Out = os.Stdout
	}
	return nil
}

// parseLogLevel honors -v first, then ASSETPIPE_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ASSETPIPE_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (g *Global) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// loadOptions loads the configuration and fixes the lifecycle options for
// the whole run.
func loadOptions(root *CLI, mode config.Mode) (config.Options, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return config.Options{}, err
	}
	opts := config.NewOptions(cfg, mode)
	if root.Production {
		opts.Production = true
	}
	return opts, nil
}

// session bundles the optional collaborators shared by all lifecycles.
type session struct {
	registry  *prometheus.Registry
	recorder  metrics.Recorder
	publisher *notify.Publisher
	options   []build.Option
}

func newSession(opts config.Options, logger *slog.Logger) *session {
	rt := &session{recorder: metrics.NoopRecorder{}}
	if opts.Mode == config.ModeServer && opts.Config.DevServer.Metrics {
		rt.registry = prometheus.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(rt.registry)
	}
	rt.options = append(rt.options, build.WithRecorder(rt.recorder), build.WithLogger(logger))
	if nc := opts.Config.Notify; nc.NATSURL != "" {
		pub, err := notify.Connect(nc, logger)
		if err != nil {
			logger.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			rt.publisher = pub
			rt.options = append(rt.options, build.WithObserver(pub))
		}
	}
	return rt
}

func (rt *session) Close() {
	if rt.publisher != nil {
		rt.publisher.Close()
	}
}

func (rt *session) newBuilder(opts config.Options, extra ...build.Option) (*build.Builder, error) {
	return build.New(opts, append(append([]build.Option{}, rt.options...), extra...)...)
}

// buildOnce runs a single build pass and prints its summary.
func buildOnce(ctx context.Context, g *Global, opts config.Options) error {
	rt := newSession(opts, g.logger())
	defer rt.Close()
	b, err := rt.newBuilder(opts)
	if err != nil {
		return err
	}
	report, err := b.Build(ctx)
	if report != nil {
		_, _ = io.WriteString(g.Out, report.Summary()+"\n")
	}
	return err
}
