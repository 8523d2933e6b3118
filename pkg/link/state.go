// Package link owns the wireless connection lifecycle of both devices.
//
// The remote runs an Advertiser: it broadcasts, accepts one central and waits
// for it to go away. The robot runs a Scanner: it hunts for the remote,
// connects, discovers the command characteristic and hands it to a
// SessionHandler. Both loops retry forever; returning to the discovery state
// is the only recovery mechanism.
//
// The current State is written only by the managers in this package. Other
// components read it through StateReader and must tolerate it changing right
// after they looked.
package link

import (
	"sync"
	"time"
)

// State is the connection state of one device.
type State int32

const (
	StateIdle State = iota
	StateAdvertising
	StateScanning
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateScanning:
		return "scanning"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// StateReader is the read-only view handed to samplers, blinkers and displays.
type StateReader interface {
	State() State
}

// Transition describes one state change.
type Transition struct {
	From    State
	To      State
	At      time.Time
	Session string
	Reason  string
}

// Tracker holds the process-wide link state. Only managers in this package
// mutate it.
type Tracker struct {
	mu      sync.RWMutex
	state   State
	since   time.Time
	session string
	subs    map[chan Transition]struct{}
}

// NewTracker returns a tracker in StateIdle.
func NewTracker() *Tracker {
	return &Tracker{
		since: time.Now(),
		subs:  make(map[chan Transition]struct{}),
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Since returns when the current state was entered.
func (t *Tracker) Since() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.since
}

// Session returns the ID of the live connection, or "" when not connected.
func (t *Tracker) Session() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

// Subscribe returns a channel receiving every transition and a function
// that unsubscribes and closes it. Transitions are dropped for subscribers
// whose buffer is full.
func (t *Tracker) Subscribe(buffer int) (<-chan Transition, func()) {
	ch := make(chan Transition, buffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) set(s State, session, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s != StateConnected {
		session = ""
	}
	if t.state == s && t.session == session {
		return
	}

	tr := Transition{
		From:    t.state,
		To:      s,
		At:      time.Now(),
		Session: session,
		Reason:  reason,
	}
	t.state = s
	t.since = tr.At
	t.session = session

	for ch := range t.subs {
		select {
		case ch <- tr:
		default:
		}
	}
}
