package events

import (
	"context"
	"sync"
)

// Recorder is an in-memory Sink capturing events for tests and the
// simulator.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends the event.
func (r *Recorder) Emit(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of one type, in emission order.
func (r *Recorder) OfType(t Type) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var _ Sink = (*Recorder)(nil)

// MultiSink fans one event out to several sinks in order. The first error
// is returned after all sinks have been attempted.
type MultiSink []Sink

// Emit delivers the event to every sink.
func (m MultiSink) Emit(ctx context.Context, ev *Event) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Sink = (MultiSink)(nil)
