package build

import "git.home.luguber.info/inful/assetpipe/internal/metrics"

// StageResult enumerates per-stage classification outcomes.
// Mirrors metrics.ResultLabel values to simplify emission.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

// recordStageResult updates Report counters and emits metrics (if recorder non-nil).
func (r *Report) recordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	switch res {
	case StageResultSuccess:
		sc.Success++
	case StageResultWarning:
		sc.Warning++
	case StageResultFatal:
		sc.Fatal++
	case StageResultCanceled:
		sc.Canceled++
	}
	r.StageCounts[stage] = sc
	if recorder != nil {
		recorder.IncStageResult(string(stage), metrics.ResultLabel(res))
	}
}
