package build

import (
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// BuildObserver receives callbacks around stage execution and build lifecycle.
type BuildObserver interface {
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(StageName)                                {}
func (NoopObserver) OnStageComplete(StageName, time.Duration, StageResult) {}
func (NoopObserver) OnBuildComplete(*Report)                               {}

// recorderObserver adapts metrics.Recorder into a BuildObserver.
type recorderObserver struct{ rec metrics.Recorder }

func (r recorderObserver) OnStageStart(StageName) {}

func (r recorderObserver) OnStageComplete(stage StageName, d time.Duration, _ StageResult) {
	r.rec.ObserveStageDuration(string(stage), d)
}

func (r recorderObserver) OnBuildComplete(report *Report) {
	r.rec.ObserveBuildDuration(report.Duration())
	r.rec.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
	for class, n := range report.Emitted {
		r.rec.AddEmittedAssets(class, n)
	}
}

// Observers fans callbacks out to several observers in order.
type Observers []BuildObserver

func (o Observers) OnStageStart(stage StageName) {
	for _, ob := range o {
		ob.OnStageStart(stage)
	}
}

func (o Observers) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	for _, ob := range o {
		ob.OnStageComplete(stage, d, res)
	}
}

func (o Observers) OnBuildComplete(report *Report) {
	for _, ob := range o {
		ob.OnBuildComplete(report)
	}
}
