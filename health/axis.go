// Package health provides an in-process health-reporting engine: application
// code registers named checks against a Registry, the engine schedules and
// caches their results, and callers query aggregated reports along several
// operational axes (readiness, liveness, criticality, degradation).
package health

// Axis is a named dimension along which a check may signal a fault.
type Axis string

// Declarable axes may be named by user code inside a CheckSpecification.
const (
	ManualInterventionRequired Axis = "MANUAL_INTERVENTION_REQUIRED"
	DegradedComplete           Axis = "DEGRADED_COMPLETE"
	DegradedPartial            Axis = "DEGRADED_PARTIAL"
	DegradedMinor              Axis = "DEGRADED_MINOR"
	CriticalWakePeopleUp       Axis = "CRITICAL_WAKE_PEOPLE_UP"
	Inconsistency              Axis = "INCONSISTENCY"
	// InternalInconsistency is a legacy alias for Inconsistency, kept for
	// wire back-compatibility: declaring either always declares both.
	InternalInconsistency Axis = "INTERNAL_INCONSISTENCY"
	External              Axis = "EXTERNAL"
	AffectsCustomers      Axis = "AFFECTS_CUSTOMERS"
	ProcessError          Axis = "PROCESS_ERROR"
	NotReady              Axis = "NOT_READY"
	RequiresReboot        Axis = "REQUIRES_REBOOT"
)

// System axes may only be set by the engine; declaring one from user code
// fails specification commit with ErrInvalidSpecification.
const (
	SysCrashed Axis = "SYS_CRASHED"
	SysSlow    Axis = "SYS_SLOW"
	SysStale   Axis = "SYS_STALE"
)

var systemAxes = map[Axis]bool{
	SysCrashed: true,
	SysSlow:    true,
	SysStale:   true,
}

// IsSystemAxis reports whether axis may only be activated by the engine.
func IsSystemAxis(axis Axis) bool {
	return systemAxes[axis]
}

// AxisSet is an unordered collection of axes, used for declared-axis sets
// and set-valued operations (intersection, union, membership).
type AxisSet map[Axis]struct{}

// NewAxisSet builds an AxisSet from the given axes, applying the declaration
// invariants: the inconsistency alias pair and the degraded lattice both
// expand downward.
func NewAxisSet(axes ...Axis) AxisSet {
	set := make(AxisSet, len(axes))
	for _, a := range axes {
		set.addDeclared(a)
	}
	return set
}

func (s AxisSet) addDeclared(axis Axis) {
	s[axis] = struct{}{}
	switch axis {
	case Inconsistency:
		s[InternalInconsistency] = struct{}{}
	case InternalInconsistency:
		s[Inconsistency] = struct{}{}
	case DegradedComplete:
		s[DegradedPartial] = struct{}{}
		s[DegradedMinor] = struct{}{}
	case DegradedPartial:
		s[DegradedMinor] = struct{}{}
	}
}

// Has reports whether axis is a member.
func (s AxisSet) Has(axis Axis) bool {
	_, ok := s[axis]
	return ok
}

// Add inserts axis (and any axes it implies via the declaration invariants).
func (s AxisSet) Add(axis Axis) {
	s.addDeclared(axis)
}

// Union returns a new AxisSet containing the members of both sets.
func (s AxisSet) Union(other AxisSet) AxisSet {
	out := make(AxisSet, len(s)+len(other))
	for a := range s {
		out[a] = struct{}{}
	}
	for a := range other {
		out[a] = struct{}{}
	}
	return out
}

// Intersects reports whether s and other share at least one member.
func (s AxisSet) Intersects(other AxisSet) bool {
	if len(other) == 0 {
		return len(s) == 0 // both empty still "intersect" as the empty set
	}
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for a := range small {
		if big.Has(a) {
			return true
		}
	}
	return false
}

// Slice returns the axes as a newly allocated, unordered slice.
func (s AxisSet) Slice() []Axis {
	out := make([]Axis, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	return out
}

// AxisActivation maps every axis a check (or part) declares to whether it is
// currently activated. Activation follows the same downward-forcing rule as
// declaration: activating DEGRADED_COMPLETE forces DEGRADED_PARTIAL and
// DEGRADED_MINOR active; activating DEGRADED_PARTIAL forces DEGRADED_MINOR.
type AxisActivation map[Axis]bool

// NewAxisActivation seeds an activation map with every axis in declared set
// to false.
func NewAxisActivation(declared AxisSet) AxisActivation {
	act := make(AxisActivation, len(declared))
	for a := range declared {
		act[a] = false
	}
	return act
}

// Activate marks axis (and any axes the degraded lattice forces) active.
// Axes not already present in the map are added.
func (a AxisActivation) Activate(axis Axis) {
	a[axis] = true
	switch axis {
	case DegradedComplete:
		a[DegradedPartial] = true
		a[DegradedMinor] = true
	case DegradedPartial:
		a[DegradedMinor] = true
	case Inconsistency:
		a[InternalInconsistency] = true
	case InternalInconsistency:
		a[Inconsistency] = true
	}
}

// ActivateAll marks every axis in the map active ("assume worst").
func (a AxisActivation) ActivateAll() {
	for axis := range a {
		a[axis] = true
	}
}

// Active returns the subset of axes currently activated.
func (a AxisActivation) Active() AxisSet {
	out := make(AxisSet, len(a))
	for axis, on := range a {
		if on {
			out[axis] = struct{}{}
		}
	}
	return out
}

// Declared returns the full set of axes this activation map tracks,
// regardless of current activation state.
func (a AxisActivation) Declared() AxisSet {
	out := make(AxisSet, len(a))
	for axis := range a {
		out[axis] = struct{}{}
	}
	return out
}

// Equal reports whether two activation maps have identical axis→bool
// contents.
func (a AxisActivation) Equal(other AxisActivation) bool {
	if len(a) != len(other) {
		return false
	}
	for axis, on := range a {
		if otherOn, ok := other[axis]; !ok || otherOn != on {
			return false
		}
	}
	return true
}

// Merge returns a new activation map that is the union of maps, where an
// axis is active if active in any input.
func Merge(maps ...AxisActivation) AxisActivation {
	out := make(AxisActivation)
	for _, m := range maps {
		for axis, on := range m {
			out[axis] = out[axis] || on
		}
	}
	return out
}

// ResponsibleRef identifies a team or individual responsible for a check
// finding. It preserves both the predefined team identifiers below and
// arbitrary user-supplied strings.
type ResponsibleRef string

// Predefined responsible-team identifiers.
const (
	Developers  ResponsibleRef = "DEVELOPERS"
	Operations  ResponsibleRef = "OPERATIONS"
	BackOffice  ResponsibleRef = "BACK_OFFICE"
	FrontOffice ResponsibleRef = "FRONT_OFFICE"
)

// ResponsibleRefsEqual compares two ordered lists of responsible refs
// pairwise by index.
func ResponsibleRefsEqual(a, b []ResponsibleRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
