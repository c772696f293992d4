package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDTO_MarksStaleWhenPastStaleAfter(t *testing.T) {
	meta := CheckMetadata{Name: "x", IntervalInSeconds: 1, ExpectedMaximumRunTimeInSeconds: 1}.normalized()
	completed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result := buildResult(meta, []StatusPart{NewInfo("fine")}, "", false, completed, completed, time.Millisecond)

	declared := NewAxisSet(NotReady)
	now := result.StaleAfter().Add(time.Second)

	dto := toDTO(meta, declared, result, now)

	require.True(t, dto.RunStatus.Stale, "expected the DTO to be marked stale once now is past StaleAfter")
	assert.True(t, dto.Axes[SysStale], "expected SYS_STALE set in the DTO axes map when stale")
}

func TestToDTO_NotStaleBeforeStaleAfter(t *testing.T) {
	meta := CheckMetadata{Name: "x", IntervalInSeconds: 600}.normalized()
	completed := time.Now()
	result := buildResult(meta, []StatusPart{NewInfo("fine")}, "", false, completed, completed, time.Millisecond)

	dto := toDTO(meta, NewAxisSet(NotReady), result, completed)
	assert.False(t, dto.RunStatus.Stale)
	_, hasStale := dto.Axes[SysStale]
	assert.False(t, hasStale, "SYS_STALE should not appear in the axes map at all when not stale")
}

func TestCreateReportRequest_Includes_ExcludesNamedChecks(t *testing.T) {
	req := CreateReportRequest{ExcludeChecks: map[string]struct{}{"skip-me": {}}}
	assert.False(t, req.includes("skip-me", NewAxisSet(NotReady)))
	assert.True(t, req.includes("keep-me", NewAxisSet(NotReady)))
}

func TestCreateReportRequest_Includes_FiltersByAxisIntersection(t *testing.T) {
	req := CreateReportRequest{Axes: NewAxisSet(RequiresReboot)}
	assert.False(t, req.includes("ready-check", NewAxisSet(NotReady)))
	assert.True(t, req.includes("reboot-check", NewAxisSet(RequiresReboot)))
}

func TestCreateReportRequest_Includes_AppliesAllFilters(t *testing.T) {
	alwaysTrue := func(name string, declared AxisSet) bool { return true }
	alwaysFalse := func(name string, declared AxisSet) bool { return false }

	req := CreateReportRequest{Filters: []func(string, AxisSet) bool{alwaysTrue, alwaysFalse}}
	assert.False(t, req.includes("any", NewAxisSet(NotReady)), "expected inclusion only when every filter accepts")
}

func TestBuildAxesDTO_SpecifiedIncludesInactiveAxesActivatedOnlyTrue(t *testing.T) {
	dtos := []HealthCheckDTO{
		{Axes: map[Axis]bool{NotReady: false, ProcessError: true}},
		{Axes: map[Axis]bool{RequiresReboot: false}},
	}

	axes := buildAxesDTO(dtos)

	specified := NewAxisSet(axes.Specified...)
	require.True(t, specified.Has(NotReady))
	require.True(t, specified.Has(ProcessError))
	require.True(t, specified.Has(RequiresReboot))

	activated := NewAxisSet(axes.Activated...)
	assert.True(t, activated.Has(ProcessError))
	assert.False(t, activated.Has(NotReady))
	assert.False(t, activated.Has(RequiresReboot))
}
