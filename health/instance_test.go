package health

import (
	"context"
	"errors"
	"testing"
)

func TestCheckInstance_Execute_RunsStepsInOrder(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "x"}, nil)
	spec := inst.Specification()
	var order []string
	spec.StaticText("first").
		DynamicText(func(*SharedContext) string { order = append(order, "dynamic"); return "second" }).
		Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
			order = append(order, "check")
			return c.Ok("fine")
		})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if len(result.Parts) != 3 {
		t.Fatalf("expected 3 parts (static, dynamic, check), got %d", len(result.Parts))
	}
	if order[0] != "dynamic" || order[1] != "check" {
		t.Fatalf("expected dynamic text step before check step, got order %v", order)
	}
}

func TestCheckInstance_Execute_PanicIsRecoveredAndActivatesAllDeclaredAxes(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "x"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady, ProcessError}, func(c *CheckContext) *CheckResultBuilder {
		panic(errors.New("boom"))
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if !result.Crashed() {
		t.Fatal("expected a crashed result after a panicking check step")
	}
	if !result.AggregatedAxes[NotReady] || !result.AggregatedAxes[ProcessError] {
		t.Error("expected every declared axis active after a crash (assume the worst)")
	}
	if result.Ok() {
		t.Error("a crashed result must never be ok")
	}
}

func TestCheckInstance_Execute_StopsAtFirstPanickingStep(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "x"}, nil)
	spec := inst.Specification()
	ranSecond := false
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		panic("first step fails")
	}).Check(nil, []Axis{ProcessError}, func(c *CheckContext) *CheckResultBuilder {
		ranSecond = true
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	inst.Execute(context.Background())
	if ranSecond {
		t.Error("expected execution to halt after the first panicking step")
	}
}

func TestCheckInstance_Execute_CancelledContextProducesUnhandledFailure(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "x"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		return c.Ok("fine")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := inst.Execute(ctx)
	if !result.Crashed() {
		t.Fatal("expected a cancelled context to produce a crashed (unhandled) result")
	}
}

func TestCheckInstance_DeclaredAxes_UnionsAcrossCheckSteps(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "x"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("a") }).
		Check(nil, []Axis{ProcessError}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("b") })
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	declared := inst.DeclaredAxes()
	if !declared.Has(NotReady) || !declared.Has(ProcessError) {
		t.Fatalf("expected DeclaredAxes to union both steps' axes, got %v", declared)
	}
}
