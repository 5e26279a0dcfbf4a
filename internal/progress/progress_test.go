package progress

import (
	"encoding/json"
	"testing"

	"github.com/stbrinkmann/shadowscan/internal/pipeline"
)

// TestEventJSONShape locks down the wire schema progress events must keep
// (spec.md §6: progress, current_step, total_steps, current_step_number).
func TestEventJSONShape(t *testing.T) {
	ev := Event{
		RunID:             "run-1",
		Progress:          42.5,
		CurrentStep:       "2026-06-21T12:00:00Z",
		TotalSteps:        10,
		CurrentStepNumber: 4,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, field := range []string{"progress", "current_step", "total_steps", "current_step_number", "run_id"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("encoded event is missing required field %q: %s", field, data)
		}
	}
}

func TestNewServerStartsEmpty(t *testing.T) {
	s := NewServer()
	if len(s.conns) != 0 {
		t.Errorf("new server should start with no connections, got %d", len(s.conns))
	}
}

func TestEmitOnEmptyServerDoesNotPanic(t *testing.T) {
	s := NewServer()
	// No connections registered: Emit should simply do nothing.
	s.Emit(pipeline.Progress{RunID: "r", ProgressPct: 10, TotalSteps: 5, CurrentStepNumber: 1})
}
