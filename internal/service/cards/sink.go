package cards

import (
	"encoding/json"

	"log/slog"

	"github.com/cardloop/users-api/internal/domain"
	"github.com/cardloop/users-api/internal/ws"
)

// Sink receives card-lifecycle notifications from the event transport. The
// handlers only log and fan the event out to feed subscribers; they mutate no
// state and never fail.
type Sink struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a Sink.
func New(hub *ws.Hub, logger *slog.Logger) Sink {
	return Sink{hub: hub, logger: logger}
}

// CardCreated handles a card_created notification.
func (s Sink) CardCreated(event domain.CardEvent) {
	s.handle(domain.CardCreated, event)
}

// CardUpdated handles a card_updated notification.
func (s Sink) CardUpdated(event domain.CardEvent) {
	s.handle(domain.CardUpdated, event)
}

// CardDeleted handles a card_deleted notification.
func (s Sink) CardDeleted(event domain.CardEvent) {
	s.handle(domain.CardDeleted, event)
}

func (s Sink) handle(eventType string, event domain.CardEvent) {
	s.logger.Info("card event received",
		"type", eventType,
		"title", event.Title,
		"share_link", event.ShareLink,
		"attribute", event.Attribute,
	)
	s.broadcast(eventType, event)
}

func (s Sink) broadcast(eventType string, event domain.CardEvent) {
	if s.hub == nil {
		return
	}
	payload, err := MarshalEvent(eventType, event)
	if err != nil {
		s.logger.Warn("failed to marshal card event payload", "error", err)
		return
	}
	s.hub.Broadcast(payload)
}

// MarshalEvent formats a card event for streaming payloads.
func MarshalEvent(eventType string, event domain.CardEvent) ([]byte, error) {
	payload := map[string]any{
		"type":        eventType,
		"title":       event.Title,
		"description": event.Description,
		"shareLink":   event.ShareLink,
		"attribute":   event.Attribute,
	}
	return json.Marshal(payload)
}
