package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardloop/users-api/internal/domain"
)

type recordingHandlers struct {
	created []domain.CardEvent
	updated []domain.CardEvent
	deleted []domain.CardEvent
}

func (r *recordingHandlers) CardCreated(event domain.CardEvent) {
	r.created = append(r.created, event)
}

func (r *recordingHandlers) CardUpdated(event domain.CardEvent) {
	r.updated = append(r.updated, event)
}

func (r *recordingHandlers) CardDeleted(event domain.CardEvent) {
	r.deleted = append(r.deleted, event)
}

func newSubscriber(handlers CardHandlers) *Subscriber {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriber(nil, handlers, logger, SubscriberConfig{
		Stream: "card.events", Group: "users-api", Consumer: "test",
	})
}

func encodeEnvelope(t *testing.T, eventType string, event domain.CardEvent) string {
	t.Helper()
	raw, err := json.Marshal(Envelope{Type: eventType, Timestamp: time.Now().UTC(), Data: event})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(raw)
}

func TestDispatchRoutesByEventType(t *testing.T) {
	handlers := &recordingHandlers{}
	sub := newSubscriber(handlers)
	event := domain.CardEvent{Title: "Congrats", ShareLink: "https://cards.example/x", Attribute: "gold"}

	for _, eventType := range []string{domain.CardCreated, domain.CardUpdated, domain.CardDeleted} {
		message := redis.XMessage{
			ID:     "1-0",
			Values: map[string]interface{}{"event": encodeEnvelope(t, eventType, event)},
		}
		if err := sub.dispatch(message); err != nil {
			t.Fatalf("dispatch %s: %v", eventType, err)
		}
	}

	if len(handlers.created) != 1 || len(handlers.updated) != 1 || len(handlers.deleted) != 1 {
		t.Fatalf("each handler should fire once: %+v", handlers)
	}
	if handlers.created[0].Title != "Congrats" {
		t.Fatalf("payload lost in dispatch: %+v", handlers.created[0])
	}
}

func TestDispatchRejectsMalformedMessages(t *testing.T) {
	handlers := &recordingHandlers{}
	sub := newSubscriber(handlers)

	cases := []map[string]interface{}{
		{},                                  // missing event field
		{"event": "not json"},               // undecodable
		{"event": `{"type":"card_burned"}`}, // unknown type
	}
	for i, values := range cases {
		if err := sub.dispatch(redis.XMessage{ID: "1-0", Values: values}); err == nil {
			t.Fatalf("case %d: expected dispatch error", i)
		}
	}
	if len(handlers.created)+len(handlers.updated)+len(handlers.deleted) != 0 {
		t.Fatalf("no handler may fire for malformed messages: %+v", handlers)
	}
}
