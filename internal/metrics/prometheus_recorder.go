package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetpipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	stageDuration    *prom.HistogramVec
	buildDuration    prom.Histogram
	stageResults     *prom.CounterVec
	buildOutcome     *prom.CounterVec
	emittedAssets    *prom.CounterVec
	imageBytesSaved  prom.Counter
	rebuilds         *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.emittedAssets = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "emitted_assets_total",
			Help:      "Files emitted by builds, per asset class",
		}, []string{"class"})
		pr.imageBytesSaved = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "image_bytes_saved_total",
			Help:      "Bytes removed by image optimization",
		})
		pr.rebuilds = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Rebuilds started by the watcher, per trigger",
		}, []string{"trigger"})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.emittedAssets, pr.imageBytesSaved, pr.rebuilds)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddEmittedAssets(class string, n int) {
	if p == nil || p.emittedAssets == nil || n <= 0 {
		return
	}
	p.emittedAssets.WithLabelValues(class).Add(float64(n))
}

func (p *PrometheusRecorder) AddImageBytesSaved(n int64) {
	if p == nil || p.imageBytesSaved == nil || n <= 0 {
		return
	}
	p.imageBytesSaved.Add(float64(n))
}

func (p *PrometheusRecorder) IncRebuild(trigger string) {
	if p == nil || p.rebuilds == nil {
		return
	}
	p.rebuilds.WithLabelValues(trigger).Inc()
}
