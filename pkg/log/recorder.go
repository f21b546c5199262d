package log

import "sync"

// Recorder keeps events in memory. Used by tests and by the interactive
// console to show recent activity.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewRecorder creates a Recorder that keeps at most limit events
// (0 = unlimited). Older events are dropped first.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Log stores the event.
func (r *Recorder) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Events returns a copy of the stored events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the stored events matching f.
func (r *Recorder) Filter(f Filter) []Event {
	var out []Event
	for _, e := range r.Events() {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all stored events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var _ Logger = (*Recorder)(nil)
