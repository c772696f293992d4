package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func okInstance(t *testing.T, name string, clock Clock) *CheckInstance {
	t.Helper()
	inst := NewCheckInstance(CheckMetadata{Name: name, IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	return inst
}

func countingInstance(t *testing.T, name string, clock Clock, count *int32) *CheckInstance {
	t.Helper()
	inst := NewCheckInstance(CheckMetadata{Name: name, IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		atomic.AddInt32(count, 1)
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	return inst
}

func TestCheckRunner_StartRunsImmediatelyAndCachesResult(t *testing.T) {
	var n int32
	clock := NewFixedClock(time.Now())
	inst := countingInstance(t, "r", clock, &n)
	runner := NewCheckRunner("r", inst, clock, nil, nil)

	runner.Start(context.Background())
	defer runner.Stop()

	select {
	case <-runner.firstResultCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first result")
	}

	if atomic.LoadInt32(&n) == 0 {
		t.Fatal("expected at least one execution")
	}
	if got := runner.GetStatus(context.Background(), false); !got.Ok() {
		t.Fatal("expected cached result to be ok")
	}
}

func TestCheckRunner_RequestUpdate_TriggersAnotherExecution(t *testing.T) {
	var n int32
	clock := NewFixedClock(time.Now())
	inst := countingInstance(t, "r", clock, &n)
	runner := NewCheckRunner("r", inst, clock, nil, nil)

	runner.Start(context.Background())
	defer runner.Stop()

	<-runner.firstResultCh
	before := atomic.LoadInt32(&n)

	result, err := runner.UpdateStatusAndWait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Ok() {
		t.Fatal("expected ok result")
	}
	if atomic.LoadInt32(&n) <= before {
		t.Fatal("expected RequestUpdate/RefreshStatus to trigger another execution")
	}
}

func TestCheckRunner_Stop_InterruptsPendingRefresh(t *testing.T) {
	clock := NewFixedClock(time.Now())
	inst := NewCheckInstance(CheckMetadata{Name: "r", IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	started := make(chan struct{})
	release := make(chan struct{})
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		close(started)
		<-release
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	runner := NewCheckRunner("r", inst, clock, nil, nil)
	runner.Start(context.Background())

	<-started // worker is blocked mid-first-iteration

	ch := runner.RefreshStatus()

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
		runner.Stop()
	}()

	select {
	case outcome := <-ch:
		if !IsCode(outcome.err, CodeInterrupted) && outcome.result == nil {
			t.Fatalf("expected either a completed result or ErrInterrupted, got %+v", outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh outcome")
	}
}

func TestCheckRunner_Stop_CancelsStillPendingRefreshesWithErrInterrupted(t *testing.T) {
	clock := NewFixedClock(time.Now())
	inst := NewCheckInstance(CheckMetadata{Name: "r", IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	block := make(chan struct{})
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		<-block
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	runner := NewCheckRunner("r", inst, clock, nil, nil)
	runner.Start(context.Background())

	ch := runner.RefreshStatus()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	runner.Stop()

	select {
	case outcome := <-ch:
		if outcome.result == nil && !IsCode(outcome.err, CodeInterrupted) {
			t.Fatalf("expected result or ErrInterrupted, got %+v", outcome)
		}
	default:
		t.Fatal("expected a buffered outcome to already be present after Stop returns")
	}
}

func TestCheckRunner_GetStatus_SyncChecksAlwaysExecuteFresh(t *testing.T) {
	var n int32
	clock := NewFixedClock(time.Now())
	inst := NewCheckInstance(CheckMetadata{Name: "r", Sync: true, IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		atomic.AddInt32(&n, 1)
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	runner := NewCheckRunner("r", inst, clock, nil, nil)
	// Deliberately not started: a synchronous check must execute on the
	// calling goroutine regardless of whether the worker loop is running.
	runner.GetStatus(context.Background(), false)
	runner.GetStatus(context.Background(), false)

	if atomic.LoadInt32(&n) != 2 {
		t.Fatalf("expected 2 executions for a sync check, got %d", n)
	}
}

func TestCheckRunner_GetStatus_ForceFreshBypassesCache(t *testing.T) {
	var n int32
	clock := NewFixedClock(time.Now())
	inst := countingInstance(t, "r", clock, &n)
	runner := NewCheckRunner("r", inst, clock, nil, nil)

	runner.GetStatus(context.Background(), true)
	runner.GetStatus(context.Background(), true)

	if atomic.LoadInt32(&n) != 2 {
		t.Fatalf("expected 2 forced executions, got %d", n)
	}
}

func TestCheckRunner_CommitResult_PublishesOnlyOnChange(t *testing.T) {
	clock := NewFixedClock(time.Now())
	inst := okInstance(t, "r", clock)
	var publishes int32
	runner := NewCheckRunner("r", inst, clock, nil, func(name string, result *CheckResult) {
		atomic.AddInt32(&publishes, 1)
	})

	first := inst.Execute(context.Background())
	runner.commitResult(first)
	second := inst.Execute(context.Background())
	runner.commitResult(second)

	if atomic.LoadInt32(&publishes) != 1 {
		t.Fatalf("expected exactly one publish for two structurally-equal ok results, got %d", publishes)
	}
}

func TestCheckRunner_SlowStartupResult_ActivatesNotReadyWhenDeclared(t *testing.T) {
	clock := NewFixedClock(time.Now())
	inst := NewCheckInstance(CheckMetadata{Name: "r", IntervalInSeconds: 3600}, clock)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	runner := NewCheckRunner("r", inst, clock, nil, nil)
	result := runner.slowStartupResult()

	if result.Ok() {
		t.Fatal("a not-yet-completed async check should not report ok")
	}
	if !result.AggregatedAxes[NotReady] {
		t.Error("expected NOT_READY active in the slow-startup placeholder since the check declares it")
	}
}
