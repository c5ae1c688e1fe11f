package testutil

import (
	"context"
	"sync"

	"github.com/atrium-ui/app-state/internal/tree"
)

// Recorder is a subscriber callback that keeps every delta it receives.
//
// Pass Recorder.Callback to Subscribe. Recorded deltas are deep copies, so
// later mutations by the code under test cannot change them.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	deltas []tree.Map
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Callback records delta. Its signature matches notify.Callback.
func (r *Recorder) Callback(_ context.Context, delta tree.Map) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, tree.Copy(delta))
}

// Deltas returns the recorded deltas in delivery order.
func (r *Recorder) Deltas() []tree.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tree.Map, len(r.deltas))
	copy(out, r.deltas)
	return out
}

// Count returns the number of deliveries.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deltas)
}

// Last returns the most recent delta, or nil if none was delivered.
func (r *Recorder) Last() tree.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deltas) == 0 {
		return nil
	}
	return r.deltas[len(r.deltas)-1]
}

// Reset forgets all recorded deltas.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = nil
}
