package audit

import (
	"context"
	"sync"
)

// Recorder is a Logger that keeps every logged action in order. It exists
// for tests that assert on the sequence of LogAction calls.
type Recorder struct {
	mu      sync.Mutex
	actions []Action
	// FailWith, when set, is returned from LogAction without recording.
	FailWith error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LogAction(ctx context.Context, a Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.actions = append(r.actions, a)
	return nil
}

// Actions returns a copy of the recorded actions in call order.
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Len returns the number of recorded actions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}
