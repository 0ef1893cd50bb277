// Package status tracks the harvester runtime state: waiting for login,
// scanning batches, idling between scans.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
)

// State represents a harvester runtime state.
type State string

const (
	Booting       State = "BOOTING"
	LoginRequired State = "LOGIN_REQUIRED"
	Idle          State = "IDLE"
	Scanning      State = "SCANNING"
	BatchComplete State = "BATCH_COMPLETE"
	ScanComplete  State = "SCAN_COMPLETE"
	Error         State = "ERROR"
)

// validTransitions defines allowed state transitions. A scan is
// Idle -> Scanning -> (BatchComplete -> Scanning)* -> ScanComplete -> Idle,
// with Error reachable from anywhere and recoverable back to Idle.
var validTransitions = map[State][]State{
	Booting:       {LoginRequired, Idle, Error},
	LoginRequired: {Idle, Error},
	Idle:          {Scanning, Error},
	Scanning:      {BatchComplete, ScanComplete, Idle, Error},
	BatchComplete: {Scanning, ScanComplete, Error},
	ScanComplete:  {Idle, Error},
	Error:         {Idle, Booting},
}

// Machine tracks and enforces harvester state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition
// is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
