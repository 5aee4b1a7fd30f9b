package cards

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/cardloop/users-api/internal/domain"
	"github.com/cardloop/users-api/internal/ws"
)

type captureSubscriber struct {
	payloads [][]byte
}

func (c *captureSubscriber) Send(payload []byte) error {
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureSubscriber) Close() {}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlersBroadcastToFeed(t *testing.T) {
	hub := ws.NewHub()
	capture := &captureSubscriber{}
	hub.Register(capture)
	sink := New(hub, newLogger())

	event := domain.CardEvent{
		Title:       "Birthday",
		Description: "A card",
		ShareLink:   "https://cards.example/abc",
		Attribute:   "festive",
	}
	sink.CardCreated(event)
	sink.CardUpdated(event)
	sink.CardDeleted(event)

	if len(capture.payloads) != 3 {
		t.Fatalf("expected 3 feed payloads, got %d", len(capture.payloads))
	}
	var decoded struct {
		Type      string `json:"type"`
		Title     string `json:"title"`
		ShareLink string `json:"shareLink"`
	}
	if err := json.Unmarshal(capture.payloads[0], &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Type != domain.CardCreated || decoded.Title != "Birthday" || decoded.ShareLink != "https://cards.example/abc" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestHandlersTolerateNilHub(t *testing.T) {
	sink := New(nil, newLogger())
	// Must not panic; the sink has no failure path.
	sink.CardCreated(domain.CardEvent{Title: "solo"})
}
