package health

import (
	"context"
	"testing"
)

func TestCheckSpecification_Commit_RejectsMissingAxes(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.Check(nil, nil, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })

	err := spec.Commit()
	if !IsCode(err, CodeInvalidSpecification) {
		t.Fatalf("expected ErrInvalidSpecification, got %v", err)
	}
}

func TestCheckSpecification_Commit_RejectsSystemAxis(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{SysCrashed}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })

	err := spec.Commit()
	if !IsCode(err, CodeInvalidSpecification) {
		t.Fatalf("expected ErrInvalidSpecification for a declared system axis, got %v", err)
	}
}

func TestCheckSpecification_Commit_LeavesPriorCommittedStepsOnFailure(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)

	good := inst.Specification()
	good.StaticText("first commit").Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })
	if err := good.Commit(); err != nil {
		t.Fatalf("unexpected error on valid commit: %v", err)
	}

	bad := inst.Specification()
	bad.Check(nil, nil, func(c *CheckContext) *CheckResultBuilder { return c.Ok("fine") })
	if err := bad.Commit(); err == nil {
		t.Fatal("expected the invalid commit to fail")
	}

	result := inst.Execute(context.Background())
	if !result.Ok() {
		t.Fatal("expected the previously committed (valid) steps to still execute")
	}
}

func TestCheckSpecification_Check_OkTerminatorDeactivatesAllDeclaredAxes(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady, ProcessError}, func(c *CheckContext) *CheckResultBuilder {
		return c.Ok("all good")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if !result.Ok() {
		t.Fatal("expected ok result")
	}
	for axis, active := range result.AggregatedAxes {
		if active {
			t.Errorf("axis %s should not be active after Ok()", axis)
		}
	}
}

func TestCheckSpecification_Check_FaultActivatesEveryDeclaredAxis(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{NotReady, ProcessError}, func(c *CheckContext) *CheckResultBuilder {
		return c.Fault("broken")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if result.Ok() {
		t.Fatal("expected not-ok result")
	}
	if !result.AggregatedAxes[NotReady] || !result.AggregatedAxes[ProcessError] {
		t.Error("expected both declared axes active after Fault()")
	}
}

func TestCheckResultBuilder_TurnOffAxes_OnlyAffectsDeclaredAxes(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.Check(nil, []Axis{DegradedComplete}, func(c *CheckContext) *CheckResultBuilder {
		b := c.Fault("degraded")
		// DegradedMinor isn't in the ignore list; turning off an undeclared
		// axis name should simply be a no-op rather than panicking.
		return b.TurnOffAxes(DegradedComplete, RequiresReboot)
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if result.AggregatedAxes[DegradedComplete] {
		t.Error("DEGRADED_COMPLETE should have been turned off")
	}
	if !result.AggregatedAxes[DegradedMinor] {
		t.Error("DEGRADED_MINOR should remain active: TurnOffAxes only turns off the named axes")
	}
}

func TestCheckContext_SharedContext_PassesValueBetweenSteps(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.DynamicText(func(shared *SharedContext) string {
		shared.Put("n", 42)
		return "computed"
	}).Check(nil, []Axis{NotReady}, func(c *CheckContext) *CheckResultBuilder {
		n, _ := c.Get("n").(int)
		if n != 42 {
			return c.Fault("shared value missing")
		}
		return c.Ok("shared value present")
	})
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if !result.Ok() {
		t.Fatal("expected the check step to observe the value put by the dynamic text step")
	}
}

func TestCheckSpecification_StructuredData_LastWriterWins(t *testing.T) {
	inst := NewCheckInstance(CheckMetadata{Name: "c"}, nil)
	spec := inst.Specification()
	spec.StructuredData(func(*SharedContext) string { return "first" }).
		StructuredData(func(*SharedContext) string { return "second" })
	if err := spec.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	result := inst.Execute(context.Background())
	if result.StructuredData != "second" {
		t.Errorf("StructuredData = %q, want %q", result.StructuredData, "second")
	}
}
