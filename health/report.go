package health

import "time"

// ReportDTOVersion is the wire-format schema version.
const ReportDTOVersion = "0.3"

// ServiceInfo is the external collaborator the report DTO embeds under
// "service". The core engine treats it as an opaque, injected, read-mostly
// value; see the serviceinfo package for a concrete gatherer.
type ServiceInfo struct {
	Host         string
	Project      string
	CPUs         int
	OS           string
	MemoryTotal  uint64
	MemoryUsed   uint64
	LoadAverage  float64
	RunningSince time.Time
	Properties   map[string]string
}

// EntityRefDTO is the wire shape of EntityRef.
type EntityRefDTO struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ExceptionDTO is the wire shape of a WithThrowable part's failure.
type ExceptionDTO struct {
	ClassName  string `json:"className"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// LinkDTO is the wire shape of a Link part.
type LinkDTO struct {
	DisplayText string `json:"displayText"`
	URL         string `json:"url"`
}

// StatusPartDTO is the wire shape of one StatusPart, regardless of variant;
// unset fields are omitted.
type StatusPartDTO struct {
	Description      string           `json:"description"`
	ResponsibleTeams []ResponsibleRef `json:"responsibleTeams,omitempty"`
	Axes             map[Axis]bool    `json:"axes,omitempty"`
	AffectedEntities []EntityRefDTO   `json:"affectedEntities,omitempty"`
	Exception        *ExceptionDTO    `json:"exception,omitempty"`
	Link             *LinkDTO         `json:"link,omitempty"`
}

// RunStatusDTO is the wire shape of a check's execution timing/derivations.
type RunStatusDTO struct {
	RunningTimeInNs int64     `json:"runningTimeInNs"`
	CheckStarted    time.Time `json:"checkStarted"`
	CheckCompleted  time.Time `json:"checkCompleted"`
	StaleAfter      time.Time `json:"staleAfter"`
	Stale           bool      `json:"stale"`
	Slow            bool      `json:"slow"`
	Crashed         bool      `json:"crashed"`
}

// HealthCheckDTO is the wire shape of one check's contribution to a report.
type HealthCheckDTO struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Type            string          `json:"type,omitempty"`
	OnBehalfOf      string          `json:"onBehalfOf,omitempty"`
	Axes            map[Axis]bool   `json:"axes"`
	Statuses        []StatusPartDTO `json:"statuses"`
	StructuredData  string          `json:"structuredData,omitempty"`
	RunStatus       RunStatusDTO    `json:"runStatus"`
}

// AxesDTO is the report-level axis summary: every axis any selected check
// specifies, and the subset currently activated across all of them.
type AxesDTO struct {
	Specified []Axis `json:"specified"`
	Activated []Axis `json:"activated"`
}

// ReportDTO is the top-level, wire-exact report object.
type ReportDTO struct {
	Version       string           `json:"version"`
	Service       ServiceInfo      `json:"service"`
	HealthChecks  []HealthCheckDTO `json:"healthChecks"`
	Axes          AxesDTO          `json:"axes"`
	Ready         bool             `json:"ready"`
	Live          bool             `json:"live"`
	CriticalFault bool             `json:"criticalFault"`
	Synchronous   bool             `json:"synchronous"`
}

// toDTO converts one runner's declared axes + CheckResult into the wire
// shape, applying the report-time staleness derivation: staleness is a
// property of the view, computed against `now`, and is never stored on the
// CheckResult itself.
func toDTO(meta CheckMetadata, declared AxisSet, result *CheckResult, now time.Time) HealthCheckDTO {
	axes := make(map[Axis]bool, len(result.AggregatedAxes)+1)
	for a, on := range result.AggregatedAxes {
		axes[a] = on
	}

	stale := now.After(result.StaleAfter())
	if stale {
		axes[SysStale] = true
	}

	return HealthCheckDTO{
		Name:           meta.Name,
		Description:    meta.Description,
		Type:           meta.Type,
		OnBehalfOf:     meta.OnBehalfOf,
		Axes:           axes,
		Statuses:       partsToDTO(result.Parts),
		StructuredData: result.StructuredData,
		RunStatus: RunStatusDTO{
			RunningTimeInNs: result.RunningTime.Nanoseconds(),
			CheckStarted:    result.CheckStarted,
			CheckCompleted:  result.CheckCompleted,
			StaleAfter:      result.StaleAfter(),
			Stale:           stale,
			Slow:            result.Slow(),
			Crashed:         result.Crashed(),
		},
	}
}

func partsToDTO(parts []StatusPart) []StatusPartDTO {
	out := make([]StatusPartDTO, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case Info:
			out = append(out, StatusPartDTO{Description: v.Text})
		case Link:
			out = append(out, StatusPartDTO{
				Description: v.DisplayText,
				Link:        &LinkDTO{DisplayText: v.DisplayText, URL: v.URL},
			})
		case WithAxes:
			dto := StatusPartDTO{
				Description:      v.Description,
				ResponsibleTeams: sortedResponsibleTeams(v.ResponsibleTeams),
				Axes:             map[Axis]bool(v.Axes),
			}
			if v.HasAffectedEntities {
				dto.AffectedEntities = make([]EntityRefDTO, len(v.AffectedEntities))
				for i, e := range v.AffectedEntities {
					dto.AffectedEntities[i] = EntityRefDTO{Type: e.Type, ID: e.ID}
				}
			}
			out = append(out, dto)
		case WithThrowable:
			out = append(out, StatusPartDTO{
				Description: v.Description,
				Exception: &ExceptionDTO{
					ClassName:  v.ErrType,
					Message:    errMessage(v.Err),
					StackTrace: v.StackTrace,
				},
			})
		}
	}
	return out
}

// CreateReportRequest parameterizes CreateReport.
type CreateReportRequest struct {
	// Axes, if non-empty, restricts the report to checks whose declared
	// axis set intersects it. An empty/nil value includes every check.
	Axes AxisSet
	// ExcludeChecks names checks to omit regardless of Axes.
	ExcludeChecks map[string]struct{}
	// Filters are additional user predicates; a check is included only if
	// every filter accepts it.
	Filters []func(name string, declared AxisSet) bool
	// ForceFreshData forces synchronous execution of every selected check
	// rather than serving cached results.
	ForceFreshData bool
}

func (req CreateReportRequest) includes(name string, declared AxisSet) bool {
	if req.ExcludeChecks != nil {
		if _, excluded := req.ExcludeChecks[name]; excluded {
			return false
		}
	}
	if len(req.Axes) > 0 && !declared.Intersects(req.Axes) {
		return false
	}
	for _, f := range req.Filters {
		if !f(name, declared) {
			return false
		}
	}
	return true
}

func buildAxesDTO(dtos []HealthCheckDTO) AxesDTO {
	specified := make(AxisSet)
	activated := make(AxisSet)
	for _, dto := range dtos {
		for axis, on := range dto.Axes {
			specified.Add(axis)
			if on {
				activated.Add(axis)
			}
		}
	}
	return AxesDTO{Specified: specified.Slice(), Activated: activated.Slice()}
}
