package notify

import "context"

// Event is the structured outcome of one run. The receiving channel's
// wire format beyond this JSON shape is not our concern.
type Event struct {
	Group           string  `json:"group"`
	Kind            string  `json:"kind"`
	State           string  `json:"state"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	SnapshotID      string  `json:"snapshot_id,omitempty"`
}

// Emitter delivers run-outcome events. Emit failures are logged by the
// caller and never abort a run.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// NopEmitter is used when no notification channel is configured.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, event Event) error {
	return nil
}
