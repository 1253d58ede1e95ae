package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/honeynil/auth-gateway/internal/models"
	"github.com/honeynil/auth-gateway/internal/repository"
	"github.com/segmentio/kafka-go"
)

// Revoker ends a session on behalf of another service.
type Revoker interface {
	Revoke(ctx context.Context, subject, sessionID string) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Topics struct {
	AuthEvents         string
	SessionRevocations string
}

// Consumer persists auth events to the audit log and applies session
// revocations published by other services. A nil audit repository or
// revoker skips that topic.
type Consumer struct {
	reader  MessageReader
	topics  Topics
	audit   repository.AuditRepository
	revoker Revoker
}

// NewConsumer joins groupID and subscribes to the topics it has a handler for.
func NewConsumer(brokers []string, groupID string, topics Topics, audit repository.AuditRepository, revoker Revoker) *Consumer {
	var subscribed []string
	if audit != nil {
		subscribed = append(subscribed, topics.AuthEvents)
	}
	if revoker != nil {
		subscribed = append(subscribed, topics.SessionRevocations)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: subscribed,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewConsumerWithReader(reader, topics, audit, revoker)
}

func NewConsumerWithReader(reader MessageReader, topics Topics, audit repository.AuditRepository, revoker Revoker) *Consumer {
	return &Consumer{reader: reader, topics: topics, audit: audit, revoker: revoker}
}

// Consume reads until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			slog.Error("failed to read Kafka message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.HandleMessage(ctx, msg); err != nil {
			// TODO: Send to dead-letter queue
			slog.Error("failed to handle Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}
	}
}

func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	slog.Debug("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

	switch msg.Topic {
	case c.topics.AuthEvents:
		if c.audit == nil {
			return nil
		}
		var event models.AuthEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal auth event: %w", err)
		}
		if event.Type == "" || event.Subject == "" {
			return fmt.Errorf("auth event is missing event_type or user_id")
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = msg.Time
		}
		if err := c.audit.Create(ctx, &event); err != nil {
			return fmt.Errorf("failed to store auth event: %w", err)
		}
		slog.Info("auth event stored", "event_type", event.Type, "user_id", event.Subject, "id", event.ID)

	case c.topics.SessionRevocations:
		if c.revoker == nil {
			return nil
		}
		var req models.RevocationRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return fmt.Errorf("failed to unmarshal revocation: %w", err)
		}
		if err := c.revoker.Revoke(ctx, req.Subject, req.SessionID); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		slog.Info("session revoked remotely", "user_id", req.Subject, "session_id", req.SessionID)

	default:
		return fmt.Errorf("unexpected topic %q", msg.Topic)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
