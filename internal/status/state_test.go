package status

import (
	"testing"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

// walkTo drives the machine from Booting to the target state through a
// valid path.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:       {},
		LoginRequired: {LoginRequired},
		Idle:          {Idle},
		Scanning:      {Idle, Scanning},
		BatchComplete: {Idle, Scanning, BatchComplete},
		ScanComplete:  {Idle, Scanning, ScanComplete},
		Error:         {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walk to %s via %s: %v", target, s, err)
		}
	}
}

func TestScanLifecycle(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Idle, Scanning, BatchComplete, Scanning, BatchComplete, Scanning, ScanComplete, Idle}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s): %v (current %s)", s, err, m.Current())
		}
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, LoginRequired},
		{Booting, Idle},
		{LoginRequired, Idle},
		{Idle, Scanning},
		{Scanning, ScanComplete},
		{Scanning, Idle},
		{BatchComplete, ScanComplete},
		{ScanComplete, Idle},
		{Error, Idle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(ScanComplete); err == nil {
		t.Error("Transition(BOOTING -> SCAN_COMPLETE) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state changed on invalid transition: %s", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Idle); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if change.From != Booting || change.To != Idle {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}
