package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("contact.", 10)
	defer unsub()

	b.Publish(Event{Kind: "contact.saved", Timestamp: time.Now(), Payload: "x@ex.com"})

	select {
	case evt := <-ch:
		if evt.Kind != "contact.saved" {
			t.Errorf("got kind %q, want contact.saved", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("scan.", 10)
	defer unsub()

	b.Publish(Event{Kind: "contact.saved"})
	b.Publish(Event{Kind: "scan.completed"})

	select {
	case evt := <-ch:
		if evt.Kind != "scan.completed" {
			t.Errorf("got kind %q, want scan.completed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the contact event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("scan.", 10)
	unsub()

	b.Publish(Event{Kind: "scan.started"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("scan.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "scan.batch_complete"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "scan.completed"})

	evt := <-ch
	if evt.Kind != "scan.batch_complete" {
		t.Errorf("got %q, want scan.batch_complete", evt.Kind)
	}
}
