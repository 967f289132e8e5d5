package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	if c.TargetsDiscovered == nil || c.DriftDetected == nil || c.RolloutsTriggered == nil {
		t.Fatal("expected all counters to be initialized")
	}
}

func TestRecordTargetsDiscovered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	c.RecordTargetsDiscovered(3)
	c.RecordTargetsDiscovered(2)
	if val := testutil.ToFloat64(c.TargetsDiscovered); val != 5 {
		t.Errorf("expected 5, got %f", val)
	}
}

func TestRecordDriftDetected(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	c.RecordDriftDetected(1)
	if val := testutil.ToFloat64(c.DriftDetected); val != 1 {
		t.Errorf("expected 1, got %f", val)
	}
}

func TestRecordRolloutTriggered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	c.RecordRolloutTriggered()
	c.RecordRolloutTriggered()
	c.RecordRolloutTriggered()
	if val := testutil.ToFloat64(c.RolloutsTriggered); val != 3 {
		t.Errorf("expected 3, got %f", val)
	}
}

func TestRecordRegistryLookupError(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)
	c.RecordRegistryLookupError()
	if val := testutil.ToFloat64(c.RegistryLookupErrors); val != 1 {
		t.Errorf("expected 1, got %f", val)
	}
}
