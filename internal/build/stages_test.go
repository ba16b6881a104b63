package build

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

type countingRecorder struct {
	metrics.NoopRecorder
	results map[string]metrics.ResultLabel
}

func (c *countingRecorder) IncStageResult(stage string, r metrics.ResultLabel) {
	c.results[stage] = r
}

type stageLog struct {
	NoopObserver
	started   []StageName
	completed map[StageName]StageResult
}

func (s *stageLog) OnStageStart(stage StageName) { s.started = append(s.started, stage) }

func (s *stageLog) OnStageComplete(stage StageName, _ time.Duration, r StageResult) {
	s.completed[stage] = r
}

func newTestState() (*BuildState, *countingRecorder, *stageLog) {
	rec := &countingRecorder{results: map[string]metrics.ResultLabel{}}
	obs := &stageLog{completed: map[StageName]StageResult{}}
	return &BuildState{
		Report:   newReport(config.Options{Mode: config.ModeBuild}),
		observer: obs,
		recorder: rec,
	}, rec, obs
}

func TestRunStagesStopsOnFatal(t *testing.T) {
	bs, rec, obs := newTestState()
	ran := false
	err := runStages(context.Background(), bs, []StageDef{
		{StageDiscoverSources, func(context.Context, *BuildState) error { return nil }},
		{StageBundleScripts, func(context.Context, *BuildState) error { return errors.New("syntax") }},
		{StageEmitOutput, func(context.Context, *BuildState) error { ran = true; return nil }},
	})
	require.Error(t, err)
	require.False(t, ran)

	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageErrorFatal, se.Kind)
	require.Equal(t, StageBundleScripts, se.Stage)
	require.Equal(t, metrics.ResultSuccess, rec.results["discover_sources"])
	require.Equal(t, metrics.ResultFatal, rec.results["bundle_scripts"])
	require.Equal(t, []StageName{StageDiscoverSources, StageBundleScripts}, obs.started)
	require.Equal(t, 1, bs.Report.StageCounts[StageBundleScripts].Fatal)
}

func TestRunStagesContinuesAfterWarning(t *testing.T) {
	bs, _, obs := newTestState()
	ran := false
	err := runStages(context.Background(), bs, []StageDef{
		{StageRunPlugins, func(context.Context, *BuildState) error {
			return foundationerrors.PluginError("gif kept").Warning().Build()
		}},
		{StageEmitOutput, func(context.Context, *BuildState) error { ran = true; return nil }},
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.Len(t, bs.Report.Warnings, 1)
	require.Equal(t, StageResultWarning, obs.completed[StageRunPlugins])
}

func TestRunStagesCancellation(t *testing.T) {
	bs, _, _ := newTestState()
	ctx, cancel := context.WithCancel(context.Background())
	err := runStages(ctx, bs, []StageDef{
		{StageBundleStyles, func(context.Context, *BuildState) error { cancel(); return ctx.Err() }},
		{StageEmitOutput, func(context.Context, *BuildState) error { return nil }},
	})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageErrorCanceled, se.Kind)
	require.Equal(t, StageBundleStyles, se.Stage)
}

func TestStageErrorTransient(t *testing.T) {
	fs := newFatalStageError(StageEmitOutput, foundationerrors.FileSystemError("disk full").Build())
	require.True(t, fs.Transient())
	tr := newFatalStageError(StageBundleScripts, foundationerrors.TransformError("bad syntax").Build())
	require.False(t, tr.Transient())
	require.False(t, newWarnStageError(StageRunPlugins, errors.New("x")).Transient())
}
