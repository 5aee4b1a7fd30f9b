package ws

import (
	"errors"
	"testing"
)

type stubSubscriber struct {
	sent    [][]byte
	sendErr error
	closed  bool
}

func (s *stubSubscriber) Send(payload []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *stubSubscriber) Close() { s.closed = true }

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	a := &stubSubscriber{}
	b := &stubSubscriber{}
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast([]byte("hello"))

	for _, sub := range []*stubSubscriber{a, b} {
		if len(sub.sent) != 1 || string(sub.sent[0]) != "hello" {
			t.Fatalf("subscriber missed broadcast: %v", sub.sent)
		}
	}
}

func TestBroadcastDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	broken := &stubSubscriber{sendErr: errors.New("gone")}
	healthy := &stubSubscriber{}
	hub.Register(broken)
	hub.Register(healthy)

	hub.Broadcast([]byte("one"))
	if !broken.closed {
		t.Fatal("failing subscriber must be closed")
	}

	hub.Broadcast([]byte("two"))
	if len(healthy.sent) != 2 {
		t.Fatalf("healthy subscriber should receive both payloads, got %d", len(healthy.sent))
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := &stubSubscriber{}
	hub.Register(sub)
	hub.Unregister(sub)

	hub.Broadcast([]byte("late"))
	if len(sub.sent) != 0 {
		t.Fatalf("unregistered subscriber received payloads: %v", sub.sent)
	}
}
