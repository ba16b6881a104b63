package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Stage is a discrete unit of work in a build pass.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Transient reports whether rerunning the build may succeed without a
// source change.
func (e *StageError) Transient() bool {
	if e == nil || e.Kind != StageErrorFatal {
		return false
	}
	if ce, ok := foundationerrors.AsClassified(e.Err); ok {
		return ce.RetryStrategy() == foundationerrors.RetryBackoff
	}
	return false
}

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// classifyStageError turns a stage return value into a StageError.
// Cancellation wins over everything; classified warnings stay warnings.
func classifyStageError(stage StageName, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newCanceledStageError(stage, err)
	}
	if foundationerrors.IsClassified(err) && foundationerrors.GetSeverity(err) == foundationerrors.SeverityWarning {
		return newWarnStageError(stage, err)
	}
	return newFatalStageError(stage, err)
}

// runStages executes stages in order, recording timing and stopping on the first fatal error.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.Name, ctx.Err())
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			bs.Report.recordStageResult(st.Name, StageResultCanceled, bs.recorder)
			return se
		default:
		}

		bs.observer.OnStageStart(st.Name)
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.Report.StageDurations[string(st.Name)] = dur

		if err == nil {
			bs.Report.recordStageResult(st.Name, StageResultSuccess, bs.recorder)
			bs.observer.OnStageComplete(st.Name, dur, StageResultSuccess)
			continue
		}

		se := classifyStageError(st.Name, err)
		bs.Report.StageErrorKinds[st.Name] = se.Kind
		switch se.Kind {
		case StageErrorWarning:
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			bs.Report.recordStageResult(st.Name, StageResultWarning, bs.recorder)
			bs.observer.OnStageComplete(st.Name, dur, StageResultWarning)
			continue
		case StageErrorCanceled:
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.recordStageResult(st.Name, StageResultCanceled, bs.recorder)
			bs.observer.OnStageComplete(st.Name, dur, StageResultCanceled)
			return se
		default:
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.recordStageResult(st.Name, StageResultFatal, bs.recorder)
			bs.observer.OnStageComplete(st.Name, dur, StageResultFatal)
			return se
		}
	}
	return nil
}
