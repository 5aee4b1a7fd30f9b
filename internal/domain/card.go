package domain

// CardEvent is the payload of a card-lifecycle notification published by the
// cards service. It is transient: received, logged, streamed to feed
// subscribers, never persisted.
type CardEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ShareLink   string `json:"shareLink"`
	Attribute   string `json:"attribute"`
}

// Card event types carried on the stream.
const (
	CardCreated = "card_created"
	CardUpdated = "card_updated"
	CardDeleted = "card_deleted"
)
