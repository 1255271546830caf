package ws

import (
	"errors"
	"sync"
	"testing"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
}

func (r *recordingSubscriber) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broken pipe")
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingSubscriber) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSubscriber) snapshot() ([][]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.payloads...), r.closed
}

func TestHubBroadcastScopedToCompany(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	hub.Register("company-a", a)
	hub.Register("company-b", b)

	hub.Broadcast("company-a", []byte(`{"type":"collaborator.assigned"}`))
	// the loop is serial, so the count round-trip waits for delivery
	if n := hub.Subscribers("company-a"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	gotA, _ := a.snapshot()
	gotB, _ := b.snapshot()
	if len(gotA) != 1 || string(gotA[0]) != `{"type":"collaborator.assigned"}` {
		t.Fatalf("unexpected payloads for company-a: %q", gotA)
	}
	if len(gotB) != 0 {
		t.Fatalf("company-b must not receive company-a events, got %q", gotB)
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := &recordingSubscriber{fail: true}
	hub.Register("company-a", sub)
	hub.Broadcast("company-a", []byte("x"))

	if n := hub.Subscribers("company-a"); n != 0 {
		t.Fatalf("expected failing subscriber to be dropped, got %d", n)
	}
	if _, closed := sub.snapshot(); !closed {
		t.Fatalf("expected failing subscriber to be closed")
	}
}

func TestHubCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := &recordingSubscriber{}
	hub.Register("company-a", sub)
	hub.Close()
	hub.Close()

	hub.Broadcast("company-a", []byte("ignored"))
	if n := hub.Subscribers("company-a"); n != 0 {
		t.Fatalf("expected closed hub to report 0 subscribers, got %d", n)
	}
}
