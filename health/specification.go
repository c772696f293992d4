package health

import (
	"fmt"
	"sync"
)

// SharedContext is a mutable key→value map threaded through every step of
// one Execute() call, letting an earlier step (e.g. DynamicText) hand data
// to a later one (e.g. Check).
type SharedContext struct {
	mu     sync.Mutex
	values map[string]any
}

func newSharedContext() *SharedContext {
	return &SharedContext{values: make(map[string]any)}
}

// Put stores a value under name, overwriting any prior value.
func (c *SharedContext) Put(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// Get retrieves the value stored under name, or nil if absent.
func (c *SharedContext) Get(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

// step is the internal representation of one DSL step. Exactly one of the
// function fields is set, selected by kind.
type step struct {
	kind            stepKind
	text            string
	dynamicText     func(*SharedContext) string
	linkText        string
	linkURL         string
	structuredData  func(*SharedContext) string
	responsibleTeam []ResponsibleRef
	declaredAxes    []Axis
	checkFn         func(*CheckContext) *CheckResultBuilder
}

type stepKind int

const (
	stepStaticText stepKind = iota
	stepDynamicText
	stepLink
	stepStructuredData
	stepCheck
)

// CheckSpecification is the mutable builder consumed by user code to
// declare a check's steps. Steps accumulate into an uncommitted sequence
// until Commit() atomically swaps them into the owning CheckInstance.
type CheckSpecification struct {
	instance    *CheckInstance
	uncommitted []step
}

// StaticText appends a fixed informational line.
func (s *CheckSpecification) StaticText(line string) *CheckSpecification {
	s.uncommitted = append(s.uncommitted, step{kind: stepStaticText, text: line})
	return s
}

// DynamicText appends a line computed from the shared context at execution
// time.
func (s *CheckSpecification) DynamicText(fn func(*SharedContext) string) *CheckSpecification {
	s.uncommitted = append(s.uncommitted, step{kind: stepDynamicText, dynamicText: fn})
	return s
}

// Link appends a display-text/URL pair.
func (s *CheckSpecification) Link(displayText, url string) *CheckSpecification {
	s.uncommitted = append(s.uncommitted, step{kind: stepLink, linkText: displayText, linkURL: url})
	return s
}

// StructuredData registers a function producing the check's structured-data
// payload. At most one takes effect per specification; later registrations
// overwrite earlier ones.
func (s *CheckSpecification) StructuredData(fn func(*SharedContext) string) *CheckSpecification {
	s.uncommitted = append(s.uncommitted, step{kind: stepStructuredData, structuredData: fn})
	return s
}

// Check appends a conditional-check step: it declares responsibleTeams and
// axes up front, and fn decides at execution time whether (and how) to
// activate them via the CheckContext it receives.
func (s *CheckSpecification) Check(responsibleTeams []ResponsibleRef, axes []Axis, fn func(*CheckContext) *CheckResultBuilder) *CheckSpecification {
	s.uncommitted = append(s.uncommitted, step{
		kind:            stepCheck,
		responsibleTeam: responsibleTeams,
		declaredAxes:    axes,
		checkFn:         fn,
	})
	return s
}

// Commit validates the uncommitted steps and, if they pass, atomically
// replaces the instance's committed steps with them, clearing the
// uncommitted buffer. Validation failures return ErrInvalidSpecification
// and leave both the committed steps and the uncommitted buffer untouched
// otherwise (so a caller may fix the offending step and retry).
func (s *CheckSpecification) Commit() error {
	for _, st := range s.uncommitted {
		if st.kind != stepCheck {
			continue
		}
		if len(st.declaredAxes) == 0 {
			return ErrInvalidSpecification(fmt.Sprintf("check step for teams %v must declare at least one axis", st.responsibleTeam))
		}
		for _, axis := range st.declaredAxes {
			if IsSystemAxis(axis) {
				return ErrInvalidSpecification(fmt.Sprintf("check step may not declare system axis %s", axis))
			}
		}
	}

	committed := make([]step, len(s.uncommitted))
	copy(committed, s.uncommitted)
	s.instance.setCommitted(committed)
	s.uncommitted = nil
	return nil
}

// CheckResultBuilder is returned by a Check step's terminators (Ok/Fault/
// FaultConditionally) so the step body may chain further text/link
// additions and turn declared-but-unwanted axes back off. The builder has no
// Exception method; handled errors are added through CheckContext.Exception
// before the terminator is called.
// Activation is monotonic downward only: a body may turn an axis off that a
// terminator activated, but may never turn one on outside Activate.
type CheckResultBuilder struct {
	parts []StatusPart
	axes  AxisActivation
}

// Text appends an Info part.
func (b *CheckResultBuilder) Text(s string) *CheckResultBuilder {
	b.parts = append(b.parts, NewInfo(s))
	return b
}

// Link appends a Link part.
func (b *CheckResultBuilder) Link(displayText, url string) *CheckResultBuilder {
	b.parts = append(b.parts, NewLink(displayText, url))
	return b
}

// TurnOffAxes deactivates the given axes on the WithAxes part this builder
// wraps. Axes not declared by the owning Check step are ignored.
func (b *CheckResultBuilder) TurnOffAxes(axes ...Axis) *CheckResultBuilder {
	for _, a := range axes {
		if _, declared := b.axes[a]; declared {
			b.axes[a] = false
		}
	}
	return b
}

// Parts returns the accumulated status parts, with the WithAxes part (if
// any) first.
func (b *CheckResultBuilder) Parts() []StatusPart {
	return b.parts
}

// CheckContext is passed to a Check step's body at execution time.
type CheckContext struct {
	Shared *SharedContext

	teams []ResponsibleRef
	axes  []Axis
	extra []StatusPart
}

// Text appends an informational line that will be included in the check's
// output regardless of the terminal verdict.
func (c *CheckContext) Text(s string) *CheckContext {
	c.extra = append(c.extra, NewInfo(s))
	return c
}

// Link appends a link that will be included in the check's output
// regardless of the terminal verdict.
func (c *CheckContext) Link(displayText, url string) *CheckContext {
	c.extra = append(c.extra, NewLink(displayText, url))
	return c
}

// Exception appends a WithThrowable part for an error the body itself
// caught and wants to report without treating the whole step as crashed
// (Unhandled is false: the body recovered).
func (c *CheckContext) Exception(description string, err error) *CheckContext {
	c.extra = append(c.extra, NewWithThrowable(description, err, false, ""))
	return c
}

// Put stores a value in the shared context for later steps.
func (c *CheckContext) Put(name string, value any) { c.Shared.Put(name, value) }

// Get retrieves a value from the shared context.
func (c *CheckContext) Get(name string) any { return c.Shared.Get(name) }

// Ok terminates the step as healthy: every declared axis starts inactive.
func (c *CheckContext) Ok(description string) *CheckResultBuilder {
	return c.terminate(description, nil, false, "")
}

// Fault terminates the step as faulted: every declared axis starts active.
// opts may supply an equality key (WithEntities or WithCompareString); if
// neither is supplied, equality falls back to comparing description text.
func (c *CheckContext) Fault(description string, opts ...FaultOption) *CheckResultBuilder {
	return c.terminate(description, opts, true, "")
}

// FaultConditionally terminates as Fault if faulted is true, otherwise as
// Ok.
func (c *CheckContext) FaultConditionally(faulted bool, description string, opts ...FaultOption) *CheckResultBuilder {
	if faulted {
		return c.Fault(description, opts...)
	}
	return c.Ok(description)
}

func (c *CheckContext) terminate(description string, opts []FaultOption, activate bool, _ string) *CheckResultBuilder {
	activation := NewAxisActivation(NewAxisSet(c.axes...))
	if activate {
		for _, a := range c.axes {
			activation.Activate(a)
		}
	}

	part := WithAxes{
		ResponsibleTeams: c.teams,
		Description:      description,
		Axes:             activation,
	}
	for _, opt := range opts {
		opt(&part)
	}

	b := &CheckResultBuilder{axes: activation}
	b.parts = append(b.parts, part)
	b.parts = append(b.parts, c.extra...)
	// Keep the WithAxes part's Axes map aliased to b.axes so TurnOffAxes
	// mutations are visible through the part already appended.
	return b
}

// FaultOption customizes the WithAxes part produced by Fault.
type FaultOption func(*WithAxes)

// WithEntities sets the fault's affected-entity equality key.
func WithEntities(entities ...EntityRef) FaultOption {
	return func(w *WithAxes) {
		w.AffectedEntities = entities
		w.HasAffectedEntities = true
	}
}

// WithCompareString sets the fault's static-compare-string equality key.
func WithCompareString(s string) FaultOption {
	return func(w *WithAxes) {
		w.StaticCompareString = s
		w.HasCompareString = true
	}
}
