// Package events publishes session lifecycle events to Kafka so downstream
// consumers (analytics, progress dashboards) can follow practice activity.
// When no brokers are configured the publisher runs in log-only mode.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted over the session topic.
const (
	TypeSessionCreated    = "session.created"
	TypeSessionStarted    = "session.started"
	TypeSessionStopped    = "session.stopped"
	TypeSessionDeleted    = "session.deleted"
	TypeFeedbackGenerated = "feedback.generated"
)

// Event is one session lifecycle event. Data carries type-specific payload
// such as live stats or the feedback source tier.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Publisher writes session events to a Kafka topic, keyed by session ID so
// each session's events stay ordered within a partition.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	now     func() time.Time
}

// New creates a publisher for the given config. A nil or disabled config
// yields a log-only publisher whose Publish never fails.
func New(cfg *Config) *Publisher {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		slog.Info("kafka disabled, session events run in log-only mode")
		p := &Publisher{enabled: false, now: time.Now}
		if cfg != nil {
			p.topic = cfg.Topic
		}
		return p
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	slog.Info("kafka publisher initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		enabled: true,
		now:     time.Now,
	}
}

// Publish emits one event. In log-only mode it logs and returns nil.
func (p *Publisher) Publish(ctx context.Context, eventType, sessionID string, data map[string]any) error {
	ev := Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: p.now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", eventType, err)
	}

	slog.Debug("publishing session event", "type", eventType, "session_id", sessionID, "topic", p.topic)

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s: %w", eventType, err)
	}
	return nil
}

// Close closes the underlying Kafka writer, if any.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("events: close writer: %w", err)
	}
	return nil
}
