package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// RunnerLogger receives not-ok results as they are produced. Implementations
// must not block the worker goroutine for long; failures are caught by the
// runner and never affect the scheduling loop.
type RunnerLogger interface {
	NotOk(name string, result *CheckResult)
}

// PublishFunc delivers a changed result to the registry's observer fan-out.
// It must not block for long; the runner holds its result-update lock while
// calling it.
type PublishFunc func(name string, result *CheckResult)

type refreshOutcome struct {
	result *CheckResult
	err    error
}

// CheckRunner is the per-check scheduler: a dedicated worker goroutine that
// executes its CheckInstance on an interval, caches the latest CheckResult,
// detects structural changes, and serves on-demand refreshes and
// synchronous reads.
type CheckRunner struct {
	name     string
	instance *CheckInstance
	metadata CheckMetadata
	clock    Clock
	logger   RunnerLogger
	publish  PublishFunc

	processStarted time.Time

	shouldRun atomic.Bool
	isRunning atomic.Bool

	// mu guards updateRequested and backs the condition variable used to
	// wake the worker's inter-iteration sleep.
	mu              sync.Mutex
	cond            *sync.Cond
	updateRequested bool
	stopRequested   bool

	// resultMu is the dedicated result-update lock: it serializes the
	// nil→first-result transition and every subsequent replacement with
	// change detection and observer publication.
	resultMu   sync.Mutex
	lastResult *CheckResult

	firstResultOnce sync.Once
	firstResultCh   chan struct{}

	pendingMu sync.Mutex
	pending   []chan refreshOutcome

	doneCh chan struct{}
}

// NewCheckRunner constructs a runner for instance. logger and publish may be
// nil (a nil publish is a no-op; a nil logger skips not-ok emission).
func NewCheckRunner(name string, instance *CheckInstance, clock Clock, logger RunnerLogger, publish PublishFunc) *CheckRunner {
	if clock == nil {
		clock = SystemClock{}
	}
	r := &CheckRunner{
		name:           name,
		instance:       instance,
		metadata:       instance.Metadata(),
		clock:          clock,
		logger:         logger,
		publish:        publish,
		processStarted: clock.Now(),
		firstResultCh:  make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Name returns the check name this runner serves.
func (r *CheckRunner) Name() string { return r.name }

// Metadata returns the runner's check metadata.
func (r *CheckRunner) Metadata() CheckMetadata { return r.metadata }

// DeclaredAxes returns the instance's declared axis set.
func (r *CheckRunner) DeclaredAxes() AxisSet { return r.instance.DeclaredAxes() }

// Start launches the worker goroutine. Calling Start on an already-running
// runner is a no-op.
func (r *CheckRunner) Start(ctx context.Context) {
	if !r.shouldRun.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	r.stopRequested = false
	r.doneCh = make(chan struct{})
	r.mu.Unlock()
	r.isRunning.Store(true)
	go r.workerLoop(ctx)
}

// Stop signals the worker to exit, interrupts its sleep, waits for it to
// finish the current iteration, and cancels any remaining refresh waiters
// with ErrInterrupted.
func (r *CheckRunner) Stop() {
	if !r.shouldRun.CompareAndSwap(true, false) {
		return
	}
	r.mu.Lock()
	r.stopRequested = true
	r.cond.Broadcast()
	r.mu.Unlock()

	<-r.doneCh
	r.isRunning.Store(false)
	r.cancelPending()
}

// IsRunning reports whether the worker goroutine is currently active.
func (r *CheckRunner) IsRunning() bool { return r.isRunning.Load() }

// RequestUpdate sets the edge-triggered "run again before sleeping" flag
// and wakes the worker. It returns immediately without waiting for the run
// to happen: it guarantees at least one more execution, not that the
// caller observes its result.
func (r *CheckRunner) RequestUpdate() {
	r.mu.Lock()
	r.updateRequested = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// RefreshStatus enqueues a one-shot channel that receives the outcome of
// the next completed execution and wakes the worker. The returned channel
// receives exactly one refreshOutcome and is never closed without a send,
// except when the runner stops first, in which case it receives
// ErrInterrupted.
func (r *CheckRunner) RefreshStatus() <-chan refreshOutcome {
	ch := make(chan refreshOutcome, 1)
	if !r.shouldRun.Load() {
		ch <- refreshOutcome{err: ErrInterrupted()}
		return ch
	}
	r.pendingMu.Lock()
	r.pending = append(r.pending, ch)
	r.pendingMu.Unlock()
	r.RequestUpdate()
	return ch
}

// UpdateStatusAndWait requests a refresh and blocks until it completes or
// ctx is done, returning ErrTimeout on context deadline and ErrInterrupted
// if the runner stops first.
func (r *CheckRunner) UpdateStatusAndWait(ctx context.Context) (*CheckResult, error) {
	ch := r.RefreshStatus()
	select {
	case outcome := <-ch:
		return outcome.result, outcome.err
	case <-ctx.Done():
		return nil, ErrTimeout()
	}
}

// GetStatus returns the current status. For synchronous checks, or when
// forceFresh is true, it executes on the calling goroutine. Otherwise it
// returns the cached result, waiting on the first-result latch (bounded) if
// no execution has completed yet.
func (r *CheckRunner) GetStatus(ctx context.Context, forceFresh bool) *CheckResult {
	if r.metadata.Sync || forceFresh {
		return r.executeAndCache(ctx)
	}

	if cached := r.cachedResult(); cached != nil {
		return cached
	}
	return r.awaitFirstResult(ctx)
}

func (r *CheckRunner) cachedResult() *CheckResult {
	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	return r.lastResult
}

func (r *CheckRunner) awaitFirstResult(ctx context.Context) *CheckResult {
	timeout := r.metadata.ExpectedMaximumRunTime() + 2*time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.firstResultCh:
		return r.cachedResult()
	case <-timer.C:
		return r.slowStartupResult()
	case <-ctx.Done():
		return r.slowStartupResult()
	}
}

// slowStartupResult synthesizes a placeholder result for when an async
// check's first execution hasn't completed within its grace window.
func (r *CheckRunner) slowStartupResult() *CheckResult {
	now := r.clock.Now()
	var parts []StatusPart
	parts = append(parts, NewInfo(fmt.Sprintf("health check %q has not completed its first execution yet", r.name)))

	declared := r.DeclaredAxes()
	if declared.Has(NotReady) {
		act := AxisActivation{NotReady: false}
		act.Activate(NotReady)
		parts = append(parts, NewWithAxes(nil, "check has not reported ready yet", act))
	}

	grace := 2 * (r.metadata.Interval() + r.metadata.ExpectedMaximumRunTime())
	if now.Sub(r.processStarted) > grace {
		act := NewAxisActivation(declared)
		act.ActivateAll()
		parts = append(parts, NewWithAxes(nil, "async check has not produced a result well past its expected startup window; assuming the worst", act))
	}

	return buildResult(r.metadata, parts, "", false, now, now, 0)
}

func (r *CheckRunner) executeAndCache(ctx context.Context) *CheckResult {
	result := r.instance.Execute(ctx)
	r.commitResult(result)
	return result
}

// commitResult applies one execution's result under the result-update lock:
// change detection, cache swap, latch release, and observer publication, in
// that order, all while holding resultMu so the sequence is atomic with
// respect to concurrent commitResult calls. The runner's own worker never
// calls this concurrently with itself, but GetStatus(forceFresh) on a sync
// check can race the worker, so the lock still matters.
func (r *CheckRunner) commitResult(result *CheckResult) {
	r.resultMu.Lock()
	prior := r.lastResult
	changed := !IsEqual(result, prior)
	r.lastResult = result
	r.firstResultOnce.Do(func() { close(r.firstResultCh) })
	if changed && r.publish != nil {
		r.publish(r.name, result)
	}
	r.resultMu.Unlock()

	if !result.Ok() && r.logger != nil {
		func() {
			defer func() { recover() }() // a failing logger must not affect the loop
			r.logger.NotOk(r.name, result)
		}()
	}
}

func (r *CheckRunner) cancelPending() {
	r.pendingMu.Lock()
	pending := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- refreshOutcome{err: ErrInterrupted()}
	}
}

func (r *CheckRunner) drainPending(outcome refreshOutcome) {
	r.pendingMu.Lock()
	pending := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- outcome
	}
}

// workerLoop is the per-check scheduler's main goroutine. It never exits
// except via Stop, and a panic inside one iteration is recovered so the
// loop can continue after a not-ok backoff.
func (r *CheckRunner) workerLoop(ctx context.Context) {
	defer close(r.doneCh)

	for {
		r.mu.Lock()
		r.updateRequested = false
		stop := r.stopRequested
		r.mu.Unlock()
		if stop {
			return
		}

		sleep, iterErr := r.runIteration(ctx)

		if iterErr != nil {
			r.drainPending(refreshOutcome{err: iterErr})
			sleep = r.metadata.IntervalWhenNotOk()
		}

		r.mu.Lock()
		if r.stopRequested {
			r.mu.Unlock()
			return
		}
		if !r.updateRequested {
			r.sleepLocked(sleep)
		}
		stop = r.stopRequested
		r.mu.Unlock()
		if stop {
			return
		}
	}
}

// runIteration executes one scheduling cycle: run the check, commit and
// publish the result, resolve pending refreshes, and compute the next
// sleep duration. It recovers from any panic so the worker goroutine never
// dies.
func (r *CheckRunner) runIteration(ctx context.Context) (sleep time.Duration, iterErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			iterErr = ErrExecutionFailure(err)
		}
	}()

	result := r.instance.Execute(ctx)
	r.commitResult(result)
	r.drainPending(refreshOutcome{result: result})

	if result.Ok() {
		return r.metadata.Interval(), nil
	}
	return r.metadata.IntervalWhenNotOk(), nil
}

// sleepLocked waits on the runner's condition variable for d, or until
// woken by RequestUpdate/Stop. r.mu must be held on entry; it is released
// while waiting and re-acquired before returning, per sync.Cond semantics.
func (r *CheckRunner) sleepLocked(d time.Duration) {
	if d <= 0 {
		d = time.Duration(DefaultIntervalSeconds) * time.Second
	}

	timer := time.AfterFunc(d, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(d)
	for !r.updateRequested && !r.stopRequested && time.Now().Before(deadline) {
		r.cond.Wait()
	}
}
