package devserver

import (
	"errors"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// buildStatus tracks the latest build result for error display.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	lastBuildID  string
	hasGoodBuild bool
}

func (bs *buildStatus) setError(id string, err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
	bs.lastBuildID = id
}

func (bs *buildStatus) setSuccess(id string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = nil
	bs.lastBuildID = id
	bs.hasGoodBuild = true
}

func (bs *buildStatus) get() (err error, buildID string, hasGoodBuild bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.lastBuildID, bs.hasGoodBuild
}

// OnStageStart implements build.BuildObserver.
func (s *Server) OnStageStart(build.StageName) {}

// OnStageComplete implements build.BuildObserver.
func (s *Server) OnStageComplete(build.StageName, time.Duration, build.StageResult) {}

// OnBuildComplete records the result and tells connected browsers to
// reload. Canceled builds change nothing.
func (s *Server) OnBuildComplete(report *build.Report) {
	switch report.Outcome {
	case build.OutcomeCanceled:
		return
	case build.OutcomeFailed:
		err := errors.Join(report.Errors...)
		if err == nil {
			err = errors.New("build failed")
		}
		s.status.setError(report.BuildID, err)
		s.hub.Broadcast("error-" + report.BuildID)
	default:
		s.status.setSuccess(report.BuildID)
		s.hub.Broadcast(report.BuildID)
	}
}
