// Package flow holds the state shared by the pieces of one authorization
// flow: the in-flight request id, the write-once terminal flag and the timers
// that must not act after the flow has finished.
package flow

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

type Flow struct {
	mu        sync.Mutex
	requestID string
	terminal  bool
	timers    []clockwork.Timer
}

func New() *Flow {
	return &Flow{}
}

// Bind records the request id returned by an accepted submission.
func (f *Flow) Bind(requestID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestID = requestID
}

func (f *Flow) RequestID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestID
}

func (f *Flow) Terminal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminal
}

// Track registers a timer that Finish stops. A timer tracked after the flow
// finished is stopped right away.
func (f *Flow) Track(t clockwork.Timer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminal {
		t.Stop()
		return
	}
	f.timers = append(f.timers, t)
}

// Do runs fn while holding the flow lock, unless the flow is terminal.
// It reports whether fn ran.
func (f *Flow) Do(fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminal {
		return false
	}
	fn()
	return true
}

// Finish flips the terminal flag and stops every tracked timer. Only the
// first call returns true.
func (f *Flow) Finish() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminal {
		return false
	}
	f.terminal = true
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
	return true
}

// Abandon ends the flow without an exit navigation (cancelled context,
// exhausted polling).
func (f *Flow) Abandon() bool {
	return f.Finish()
}
