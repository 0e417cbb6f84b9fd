package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCollectorsGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncOperation("start", "ok")
	IncOperation("start", "error")
	IncOperation("toggle", "rolled_back")
	RecordStateTransition("stopped", "starting")
	SetCurrentState("running", true)
	SetCurrentState("stopped", false)
	ObserveProbeDuration(0.42)
	IncCrash()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"vigilctl_lifecycle_operations_total":        false,
		"vigilctl_lifecycle_state_transitions_total": false,
		"vigilctl_lifecycle_current_state":           false,
		"vigilctl_health_probe_duration_seconds":     false,
		"vigilctl_lifecycle_agent_crashes_total":     false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}
