package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/sourceinfo"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func sampleReport() *build.Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &build.Report{
		BuildID:  "b-1",
		Mode:     config.ModeStart,
		Start:    start,
		End:      start.Add(1500 * time.Millisecond),
		Emitted:  map[string]int{"script": 2, "style": 1},
		Warnings: []error{errors.New("copy source not found")},
		Source:   &sourceinfo.Info{Commit: "abc123", Branch: "main"},
		Outcome:  build.OutcomeWarning,
	}
}

func TestPublisherSendsBuildCompleted(t *testing.T) {
	conn := &fakeConn{}
	p := newPublisher(conn, "", nil)
	p.OnBuildComplete(sampleReport())

	require.Equal(t, "assetpipe.build", conn.subject)
	var ev BuildCompleted
	require.NoError(t, json.Unmarshal(conn.data, &ev))
	require.Equal(t, "b-1", ev.BuildID)
	require.Equal(t, "start", ev.Mode)
	require.Equal(t, "warning", ev.Outcome)
	require.Equal(t, int64(1500), ev.DurationMS)
	require.Equal(t, map[string]int{"script": 2, "style": 1}, ev.Emitted)
	require.Equal(t, []string{"copy source not found"}, ev.Warnings)
	require.Empty(t, ev.Errors)
	require.Equal(t, "abc123", ev.Commit)
	require.Equal(t, "main", ev.Branch)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(conn, "custom.subject", nil)
	require.NotPanics(t, func() { p.OnBuildComplete(sampleReport()) })
	require.Equal(t, "custom.subject", conn.subject)
	p.Close()
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(config.NotifyConfig{}, nil)
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
}

func TestConnectUnreachableIsNetworkError(t *testing.T) {
	_, err := Connect(config.NotifyConfig{NATSURL: "nats://127.0.0.1:1"}, nil)
	require.Error(t, err)
	require.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNetwork))
}
