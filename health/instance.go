package health

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// CheckInstance holds a committed CheckSpecification plus its metadata and
// clock, and executes it to produce CheckResults.
type CheckInstance struct {
	metadata CheckMetadata
	clock    Clock

	mu        sync.RWMutex
	committed []step
}

// NewCheckInstance constructs an instance with no committed steps; callers
// build a CheckSpecification against it and call Commit.
func NewCheckInstance(metadata CheckMetadata, clock Clock) *CheckInstance {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CheckInstance{metadata: metadata.normalized(), clock: clock}
}

// Specification returns a fresh builder for declaring (or re-declaring) this
// instance's steps. The returned specification's uncommitted buffer starts
// empty regardless of what is currently committed.
func (ci *CheckInstance) Specification() *CheckSpecification {
	return &CheckSpecification{instance: ci}
}

func (ci *CheckInstance) setCommitted(steps []step) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.committed = steps
}

// DeclaredAxes returns the union of every Check step's declared axes,
// expanded per the declaration invariants.
func (ci *CheckInstance) DeclaredAxes() AxisSet {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	out := make(AxisSet)
	for _, st := range ci.committed {
		if st.kind != stepCheck {
			continue
		}
		for _, a := range st.declaredAxes {
			out.Add(a)
		}
	}
	return out
}

// Metadata returns the instance's normalized metadata.
func (ci *CheckInstance) Metadata() CheckMetadata { return ci.metadata }

// Execute runs every committed step in order and returns a well-formed
// CheckResult. It never propagates a failure to the caller: a panicking
// step is recovered, materialised as an unhandled WithThrowable, and every
// axis the instance declares is activated ("assume worst").
func (ci *CheckInstance) Execute(ctx context.Context) *CheckResult {
	ci.mu.RLock()
	steps := make([]step, len(ci.committed))
	copy(steps, ci.committed)
	ci.mu.RUnlock()

	started := ci.clock.Now()
	startMono := time.Now()
	shared := newSharedContext()

	var parts []StatusPart
	var structuredData string
	var hasStructuredData bool

	crashed := ci.runSteps(ctx, steps, shared, &parts, &structuredData, &hasStructuredData)
	if crashed != nil {
		parts = append(parts, *crashed)
		allAxes := NewAxisActivation(ci.declaredAxesLocked(steps))
		allAxes.ActivateAll()
		parts = append(parts, NewWithAxes(nil, "check execution failed: assuming every declared axis is active", allAxes))
	}

	completed := ci.clock.Now()
	runningTime := time.Since(startMono)

	return buildResult(ci.metadata, parts, structuredData, hasStructuredData, started, completed, runningTime)
}

func (ci *CheckInstance) declaredAxesLocked(steps []step) AxisSet {
	out := make(AxisSet)
	for _, st := range steps {
		if st.kind != stepCheck {
			continue
		}
		for _, a := range st.declaredAxes {
			out.Add(a)
		}
	}
	return out
}

// runSteps executes each step, appending produced parts, and returns a
// non-nil WithThrowable if a step panicked. It recovers per-instance, not
// per-step: the first panicking step halts execution of the remaining
// steps, since the check can no longer attest to its own state.
func (ci *CheckInstance) runSteps(ctx context.Context, steps []step, shared *SharedContext, parts *[]StatusPart, structuredData *string, hasStructuredData *bool) (crashed *WithThrowable) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			wt := NewWithThrowable("health check step panicked", err, true, string(debug.Stack()))
			crashed = &wt
		}
	}()

	for _, st := range steps {
		select {
		case <-ctx.Done():
			wt := NewWithThrowable("health check execution cancelled", ctx.Err(), true, "")
			return &wt
		default:
		}

		switch st.kind {
		case stepStaticText:
			*parts = append(*parts, NewInfo(st.text))
		case stepDynamicText:
			*parts = append(*parts, NewInfo(st.dynamicText(shared)))
		case stepLink:
			*parts = append(*parts, NewLink(st.linkText, st.linkURL))
		case stepStructuredData:
			*structuredData = st.structuredData(shared)
			*hasStructuredData = true
		case stepCheck:
			cctx := &CheckContext{Shared: shared, teams: st.responsibleTeam, axes: st.declaredAxes}
			result := st.checkFn(cctx)
			if result == nil {
				wt := NewWithThrowable("check step returned no result", fmt.Errorf("nil CheckResultBuilder"), true, "")
				return &wt
			}
			*parts = append(*parts, result.Parts()...)
		}
	}
	return nil
}
