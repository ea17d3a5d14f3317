package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StagePrepareOutput StageName = "prepare_output"
	StageLoadPosts     StageName = "load_posts"
	StageWriteIndex    StageName = "write_index"
	StageRenderPages   StageName = "render_pages"
	StageVerifyLinks   StageName = "verify_links"
	StageSitemap       StageName = "sitemap"
)

// Stage is one unit of work in a build.
type Stage func(ctx context.Context, st *state) error

// StageErrorKind classifies how a stage failed.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError ties a failure to the stage that produced it.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

type stageDef struct {
	name StageName
	fn   Stage
}

// runStages executes stages in order, recording timings, and stops at the
// first fatal or canceled stage. Warnings are recorded and the run continues.
func runStages(ctx context.Context, st *state, stages []stageDef) error {
	for _, def := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: def.name, Err: err}
			st.report.addStageError(se)
			return se
		}

		t0 := time.Now()
		err := def.fn(ctx, st)
		dur := time.Since(t0)
		st.report.StageDurations[string(def.name)] = dur.Milliseconds()
		st.recorder.ObserveStageDuration(string(def.name), dur)

		if err == nil {
			st.recorder.IncStageResult(string(def.name), metrics.ResultSuccess)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			kind := StageErrorFatal
			if ctx.Err() != nil {
				kind = StageErrorCanceled
			}
			se = &StageError{Kind: kind, Stage: def.name, Err: err}
		}
		st.report.addStageError(se)
		if se.Kind == StageErrorWarning {
			st.recorder.IncStageResult(string(def.name), metrics.ResultWarning)
			st.logger.Warn("Stage completed with warning", logfields.Stage(string(def.name)), logfields.Error(se.Err))
			continue
		}
		st.recorder.IncStageResult(string(def.name), metrics.ResultFatal)
		return se
	}
	return nil
}
