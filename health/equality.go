package health

// IsEqual decides whether a new CheckResult differs enough from the prior
// one to publish to observers. It is intentionally coarser than
// byte-equality.
func IsEqual(a, b *CheckResult) bool {
	if a == nil || b == nil {
		return a == b
	}

	aAxesParts := withAxesParts(a.Parts)
	bAxesParts := withAxesParts(b.Parts)

	if !responsibleTeamsMatchPairwise(aAxesParts, bAxesParts) {
		return false
	}
	if !a.AggregatedAxes.Equal(b.AggregatedAxes) {
		return false
	}
	if len(aAxesParts) != len(bAxesParts) {
		return false
	}
	for i := range aAxesParts {
		if !withAxesEqual(aAxesParts[i], bAxesParts[i]) {
			return false
		}
	}

	aThrowables := throwableParts(a.Parts)
	bThrowables := throwableParts(b.Parts)
	if len(aThrowables) != len(bThrowables) {
		return false
	}
	for i := range aThrowables {
		if !withThrowableEqual(aThrowables[i], bThrowables[i]) {
			return false
		}
	}

	return true
}

func withAxesParts(parts []StatusPart) []WithAxes {
	out := make([]WithAxes, 0, len(parts))
	for _, p := range parts {
		if wa, ok := p.(WithAxes); ok {
			out = append(out, wa)
		}
	}
	return out
}

func throwableParts(parts []StatusPart) []WithThrowable {
	out := make([]WithThrowable, 0, len(parts))
	for _, p := range parts {
		if wt, ok := p.(WithThrowable); ok {
			out = append(out, wt)
		}
	}
	return out
}

func responsibleTeamsMatchPairwise(a, b []WithAxes) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ResponsibleRefsEqual(a[i].ResponsibleTeams, b[i].ResponsibleTeams) {
			return false
		}
	}
	return true
}

// withAxesEqual implements the WithAxes equality rule.
func withAxesEqual(a, b WithAxes) bool {
	aOk, bOk := a.Ok(), b.Ok()
	if aOk && bOk {
		return a.Axes.Declared().equalSet(b.Axes.Declared())
	}
	if aOk != bOk {
		return false
	}

	if !a.Axes.Equal(b.Axes) {
		return false
	}

	switch {
	case a.HasAffectedEntities && b.HasAffectedEntities:
		return EntityRefSetEqual(a.AffectedEntities, b.AffectedEntities)
	case a.HasCompareString && b.HasCompareString:
		return a.StaticCompareString == b.StaticCompareString
	case !a.HasAffectedEntities && !a.HasCompareString && !b.HasAffectedEntities && !b.HasCompareString:
		return a.Description == b.Description
	default:
		// Only one side carries entities, or only one carries a compare
		// string: unequal.
		return false
	}
}

func withThrowableEqual(a, b WithThrowable) bool {
	return a.ErrType == b.ErrType &&
		a.Unhandled == b.Unhandled &&
		a.Description == b.Description &&
		errMessage(a.Err) == errMessage(b.Err) &&
		a.StackTrace == b.StackTrace
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s AxisSet) equalSet(other AxisSet) bool {
	if len(s) != len(other) {
		return false
	}
	for a := range s {
		if !other.Has(a) {
			return false
		}
	}
	return true
}
