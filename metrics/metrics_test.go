package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	if m == nil {
		t.Fatal("expected metrics instance, got nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if m.ChecksExecutedTotal == nil {
		t.Error("ChecksExecutedTotal should not be nil")
	}
}

func TestNewWithRegistry_NilRegistererSkipsRegistration(t *testing.T) {
	// Should not panic even though nothing is registered.
	m := NewWithRegistry("test-service", nil)
	m.RecordHTTPRequest("test-service", "GET", "/health", "200", 10*time.Millisecond)
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordHTTPRequest("test-service", "GET", "/health", "200", 10*time.Millisecond)
	m.IncrementInFlight()
	m.DecrementInFlight()
}

func TestRecordCheckExecution_RecordsNotOkCounterOnlyWhenFailing(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordCheckExecution("test-service", "disk-space", time.Millisecond, true)
	m.RecordCheckExecution("test-service", "disk-space", time.Millisecond, false)

	if got := testutil.ToFloat64(m.CheckNotOkTotal.WithLabelValues("test-service", "disk-space")); got != 1 {
		t.Errorf("CheckNotOkTotal = %v, want 1", got)
	}
}

func TestSetCheckAxisActivated_TogglesBetweenZeroAndOne(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.SetCheckAxisActivated("test-service", "disk-space", "DEGRADED_COMPLETE", true)
	if got := testutil.ToFloat64(m.CheckAxisActivated.WithLabelValues("test-service", "disk-space", "DEGRADED_COMPLETE")); got != 1 {
		t.Errorf("gauge = %v, want 1", got)
	}

	m.SetCheckAxisActivated("test-service", "disk-space", "DEGRADED_COMPLETE", false)
	if got := testutil.ToFloat64(m.CheckAxisActivated.WithLabelValues("test-service", "disk-space", "DEGRADED_COMPLETE")); got != 0 {
		t.Errorf("gauge = %v, want 0", got)
	}
}

func TestInit_ReturnsSameInstanceOnSubsequentCalls(t *testing.T) {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()

	first := Init("svc-a")
	second := Init("svc-b")
	if first != second {
		t.Error("expected Init to return the same global instance once initialized")
	}
}
