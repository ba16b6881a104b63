// Package notify publishes build-completed events to NATS.
package notify

import (
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// BuildCompleted is the JSON payload published after every build.
type BuildCompleted struct {
	BuildID    string         `json:"build_id"`
	Mode       string         `json:"mode"`
	Production bool           `json:"production"`
	Outcome    string         `json:"outcome"`
	DurationMS int64          `json:"duration_ms"`
	Emitted    map[string]int `json:"emitted,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Commit     string         `json:"commit,omitempty"`
	Branch     string         `json:"branch,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewBuildCompleted summarizes a report.
func NewBuildCompleted(r *build.Report) BuildCompleted {
	ev := BuildCompleted{
		BuildID:    r.BuildID,
		Mode:       string(r.Mode),
		Production: r.Production,
		Outcome:    string(r.Outcome),
		DurationMS: r.Duration().Milliseconds(),
		Emitted:    r.Emitted,
		Errors:     messages(r.Errors),
		Warnings:   messages(r.Warnings),
		Timestamp:  r.End,
	}
	if r.Source != nil {
		ev.Commit = r.Source.Commit
		ev.Branch = r.Source.Branch
	}
	return ev
}

func messages(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	sort.Strings(out)
	return out
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher is a build.BuildObserver sending BuildCompleted events.
// Publish failures are logged and never fail a build.
type Publisher struct {
	build.NoopObserver
	pub     publisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials the configured NATS server.
func Connect(cfg config.NotifyConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.NATSURL == "" {
		return nil, foundationerrors.ConfigError("notify.nats_url is not set").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("assetpipe"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Retryable().
			Build()
	}
	p := newPublisher(conn, cfg.Subject, logger)
	p.conn = conn
	logger.Info("Publishing build events", slog.String("url", cfg.NATSURL), slog.String("subject", p.subject))
	return p, nil
}

func newPublisher(pub publisher, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = "assetpipe.build"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, subject: subject, logger: logger}
}

// OnBuildComplete publishes the report summary.
func (p *Publisher) OnBuildComplete(r *build.Report) {
	data, err := json.Marshal(NewBuildCompleted(r))
	if err != nil {
		p.logger.Warn("cannot encode build event", logfields.Error(err))
		return
	}
	if err := p.pub.Publish(p.subject, data); err != nil {
		p.logger.Warn("cannot publish build event", logfields.BuildID(r.BuildID), logfields.Error(err))
		return
	}
	p.logger.Debug("Published build event", logfields.BuildID(r.BuildID), slog.String("subject", p.subject))
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Debug("NATS flush", logfields.Error(err))
	}
	p.conn.Close()
}
