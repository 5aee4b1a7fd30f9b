package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cardloop/users-api/internal/domain"
)

// CardHandlers is the contract between the transport and the event sink:
// fire-and-forget calls, one per lifecycle notification.
type CardHandlers interface {
	CardCreated(event domain.CardEvent)
	CardUpdated(event domain.CardEvent)
	CardDeleted(event domain.CardEvent)
}

// Envelope is the wire format published on the card event stream.
type Envelope struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      domain.CardEvent `json:"data"`
}

// Subscriber consumes card-lifecycle events from a Redis stream and delivers
// them to the handlers. Delivery is unordered and at-most-once from the
// handlers' point of view: a message is acknowledged once dispatched,
// regardless of what the handler did with it.
type Subscriber struct {
	client        *redis.Client
	handlers      CardHandlers
	logger        *slog.Logger
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

// SubscriberConfig configures stream consumption.
type SubscriberConfig struct {
	Stream        string
	Group         string
	Consumer      string
	BatchSize     int64
	BlockDuration time.Duration
}

// NewSubscriber constructs a Subscriber.
func NewSubscriber(client *redis.Client, handlers CardHandlers, logger *slog.Logger, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	return &Subscriber{
		client:        client,
		handlers:      handlers,
		logger:        logger,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
	}
}

// Run consumes the stream until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	s.logger.Info("card event subscriber started", "stream", s.stream, "group", s.group, "consumer", s.consumer)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("card event subscriber stopping", "stream", s.stream)
			return ctx.Err()
		default:
			if err := s.readBatch(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("card event read failed", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) readBatch(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.dispatch(message); err != nil {
				s.logger.Warn("card event discarded", "message_id", message.ID, "error", err)
			}
			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				s.logger.Warn("card event ack failed", "message_id", message.ID, "error", err)
			}
		}
	}
	return nil
}

// dispatch decodes a stream message and routes it to the matching handler.
func (s *Subscriber) dispatch(message redis.XMessage) error {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("message %s has no event field", message.ID)
	}
	var envelope Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch envelope.Type {
	case domain.CardCreated:
		s.handlers.CardCreated(envelope.Data)
	case domain.CardUpdated:
		s.handlers.CardUpdated(envelope.Data)
	case domain.CardDeleted:
		s.handlers.CardDeleted(envelope.Data)
	default:
		return fmt.Errorf("unknown event type %q", envelope.Type)
	}
	return nil
}
