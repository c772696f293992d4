package health

import "time"

// CheckResult is the immutable output of one CheckInstance execution.
type CheckResult struct {
	Metadata CheckMetadata
	Parts    []StatusPart

	// StructuredData is the last-writer-wins payload from any
	// StructuredData DSL step.
	StructuredData    string
	HasStructuredData bool

	RunningTime    time.Duration
	CheckStarted   time.Time
	CheckCompleted time.Time

	// AggregatedAxes is the union of every part's axis activation.
	AggregatedAxes AxisActivation
}

// Ok reports whether every part is ok and the result is neither slow nor
// crashed.
func (r *CheckResult) Ok() bool {
	if r.Crashed() || r.Slow() {
		return false
	}
	for _, p := range r.Parts {
		if !p.Ok() {
			return false
		}
	}
	return true
}

// Slow reports whether RunningTime exceeded the check's expected maximum.
func (r *CheckResult) Slow() bool {
	return r.RunningTime > r.Metadata.ExpectedMaximumRunTime()
}

// Crashed reports whether any part is an unhandled WithThrowable.
func (r *CheckResult) Crashed() bool {
	for _, p := range r.Parts {
		if wt, ok := p.(WithThrowable); ok && wt.Unhandled {
			return true
		}
	}
	return false
}

// StaleAfter is the instant beyond which a report built from this result
// must mark it stale: checkCompleted + 3×(interval + expectedMaximumRunTime).
func (r *CheckResult) StaleAfter() time.Time {
	window := 3 * (r.Metadata.Interval() + r.Metadata.ExpectedMaximumRunTime())
	return r.CheckCompleted.Add(window)
}

// buildResult finalizes a CheckResult from the parts accumulated during one
// Execute() call, applying the slow-axis and aggregation derivations.
func buildResult(meta CheckMetadata, parts []StatusPart, structuredData string, hasStructuredData bool, started, completed time.Time, runningTime time.Duration) *CheckResult {
	r := &CheckResult{
		Metadata:          meta,
		Parts:             parts,
		StructuredData:    structuredData,
		HasStructuredData: hasStructuredData,
		RunningTime:       runningTime,
		CheckStarted:      started,
		CheckCompleted:    completed,
	}

	if r.Slow() {
		act := AxisActivation{SysSlow: true}
		r.Parts = append(r.Parts, NewWithAxes(nil, "execution exceeded expected maximum run time", act))
	}

	r.AggregatedAxes = aggregateAxes(r.Parts)
	return r
}

func aggregateAxes(parts []StatusPart) AxisActivation {
	out := make(AxisActivation)
	for _, p := range parts {
		switch v := p.(type) {
		case WithAxes:
			for axis, on := range v.Axes {
				out[axis] = out[axis] || on
			}
		case WithThrowable:
			if v.Unhandled {
				out[SysCrashed] = true
			}
		}
	}
	return out
}
