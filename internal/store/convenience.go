package store

import (
	"github.com/triviabluff/client-go/internal/state"
	"github.com/triviabluff/client-go/pkg/protocol"
)

// Synchronous wrappers over the inbox for callers that don't want to
// build messages by hand.

// ApplyEvent feeds one decoded event through the reducer.
func (s *Store) ApplyEvent(ev protocol.Event) {
	s.inbox <- Apply{Event: ev}
}

// Update runs a confined write. Fn must be quick and must not touch the
// store again.
func (s *Store) Update(fn func(state.State) state.State) {
	s.inbox <- Mutate{Fn: fn}
}

// Current returns the latest snapshot.
func (s *Store) Current() Snapshot {
	reply := make(chan Snapshot, 1)
	s.inbox <- Get{Reply: reply}
	return <-reply
}

// State is shorthand for Current().State.
func (s *Store) State() state.State {
	return s.Current().State
}

// Watch registers a subscriber. The returned channel receives the current
// snapshot immediately and then every change; it is closed if the
// subscriber falls behind or the store shuts down. Cancel unregisters.
func (s *Store) Watch(id string, buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)
	s.inbox <- Subscribe{ID: id, Outbox: ch}
	return ch, func() { s.inbox <- Unsubscribe{ID: id} }
}

// Clear resets to the initial empty state.
func (s *Store) Clear() {
	s.inbox <- Reset{}
}

// Close stops the store goroutine and closes all subscriber channels.
func (s *Store) Close() {
	s.cancel()
}

// SetError records a user-visible error message.
func (s *Store) SetError(msg string) {
	s.Update(func(st state.State) state.State {
		st.Err = msg
		return st
	})
}

// SetConnected records transport status transitions.
func (s *Store) SetConnected(connected bool) {
	s.Update(func(st state.State) state.State {
		st.Connected = connected
		return st
	})
}
