package health

import (
	"fmt"
	"sort"
)

// EntityRef identifies an entity a status part's fault affects (e.g. a
// specific tenant, shard, or queue). Equality is by both fields.
type EntityRef struct {
	Type string
	ID   string
}

// EntityRefSetEqual compares two sets of entity refs for order-insensitive
// equality.
func EntityRefSetEqual(a, b []EntityRef) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[EntityRef]int, len(a))
	for _, e := range a {
		count[e]++
	}
	for _, e := range b {
		count[e]--
		if count[e] < 0 {
			return false
		}
	}
	return true
}

// StatusPart is one element of a check's output. The concrete variants are
// Info, Link, WithAxes, and WithThrowable; StatusPart is implemented as a
// closed sum type via an unexported marker method.
type StatusPart interface {
	isStatusPart()
	// Ok reports whether this part, in isolation, represents a healthy
	// state: true for Info and Link (which carry no axes), and for
	// WithAxes parts whose activation map has nothing activated.
	// WithThrowable is never ok.
	Ok() bool
}

// Info is a pure text line: no axes, no severity.
type Info struct {
	Text string
}

func (Info) isStatusPart() {}

// Ok always returns true: an Info line never signals a fault.
func (Info) Ok() bool { return true }

// Link is a display-text/URL pair surfaced alongside a check's other parts.
type Link struct {
	DisplayText string
	URL         string
}

func (Link) isStatusPart() {}

// Ok always returns true: a Link never signals a fault.
func (Link) Ok() bool { return true }

// WithAxes is the primary fault-bearing status part: it declares a set of
// axes and records, per axis, whether it is currently activated.
type WithAxes struct {
	ResponsibleTeams []ResponsibleRef
	Description      string
	Axes             AxisActivation

	// AffectedEntities and StaticCompareString are alternative stable keys
	// used by the structural-equality rule in place of comparing
	// Description verbatim (which commonly embeds timestamps or other
	// noisy values). At most one is typically set; withAxesEqual governs
	// how both being unset or both being set interact with equality.
	AffectedEntities    []EntityRef
	HasAffectedEntities bool
	StaticCompareString string
	HasCompareString    bool
}

func (WithAxes) isStatusPart() {}

// Ok reports whether every declared axis is inactive.
func (w WithAxes) Ok() bool {
	for _, active := range w.Axes {
		if active {
			return false
		}
	}
	return true
}

// WithThrowable carries an unhandled (or explicitly reported) failure.
type WithThrowable struct {
	Description string
	Err         error
	// Unhandled marks a failure the check body did not itself catch and
	// convert; such a part always carries SYS_CRASHED in the aggregated
	// axes.
	Unhandled bool

	// ErrType and StackTrace are captured at construction time so that
	// equality comparisons remain valid even if Err is later wrapped or
	// its message changes across process restarts in ways that don't
	// reflect a meaningfully different failure class.
	ErrType    string
	StackTrace string
}

func (WithThrowable) isStatusPart() {}

// Ok is always false: a throwable part never represents a healthy state.
func (WithThrowable) Ok() bool { return false }

// NewInfo constructs an Info part.
func NewInfo(text string) Info { return Info{Text: text} }

// NewLink constructs a Link part.
func NewLink(displayText, url string) Link {
	return Link{DisplayText: displayText, URL: url}
}

// NewWithAxesEntities constructs a WithAxes part keyed for equality by a set
// of affected entities.
func NewWithAxesEntities(teams []ResponsibleRef, description string, axes AxisActivation, entities []EntityRef) WithAxes {
	return WithAxes{
		ResponsibleTeams:    teams,
		Description:         description,
		Axes:                axes,
		AffectedEntities:    entities,
		HasAffectedEntities: true,
	}
}

// NewWithAxesCompareString constructs a WithAxes part keyed for equality by
// an explicit stable compare string.
func NewWithAxesCompareString(teams []ResponsibleRef, description string, axes AxisActivation, compareString string) WithAxes {
	return WithAxes{
		ResponsibleTeams:    teams,
		Description:         description,
		Axes:                axes,
		StaticCompareString: compareString,
		HasCompareString:    true,
	}
}

// NewWithAxes constructs a WithAxes part with no explicit equality key;
// equality then falls back to comparing Description verbatim.
func NewWithAxes(teams []ResponsibleRef, description string, axes AxisActivation) WithAxes {
	return WithAxes{ResponsibleTeams: teams, Description: description, Axes: axes}
}

// NewWithThrowable constructs a WithThrowable part from a recovered failure.
func NewWithThrowable(description string, err error, unhandled bool, stackTrace string) WithThrowable {
	return WithThrowable{
		Description: description,
		Err:         err,
		Unhandled:   unhandled,
		ErrType:     fmt.Sprintf("%T", err),
		StackTrace:  stackTrace,
	}
}

// sortedResponsibleTeams returns a copy of teams suitable for deterministic
// DTO rendering, without mutating the original slice's order (the
// structural-equality rule compares order as given, so sorting is only ever
// applied at the DTO boundary, never to the in-memory part).
func sortedResponsibleTeams(teams []ResponsibleRef) []ResponsibleRef {
	out := make([]ResponsibleRef, len(teams))
	copy(out, teams)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
