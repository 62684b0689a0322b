// Package messaging publishes and consumes JSON domain events over Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the domain event type on every message.
const EventTypeHeader = "event-type"

// Envelope is the JSON body written for each event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope.
func NewEnvelope(id, eventType, key string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{ID: id, Type: eventType, Key: key, OccurredAt: occurredAt, Payload: raw}, nil
}

// Producer writes envelopes to a single topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer balancing by least bytes across partitions.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

// Publish writes env keyed by env.Key so events for one entity stay ordered.
func (p *Producer) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", env.ID, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(env.Key),
		Value:   data,
		Time:    env.OccurredAt,
		Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte(env.Type)}},
	})
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads envelopes from a topic.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer builds a consumer. An empty groupID reads the partition-0 stream from the latest offset.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if groupID == "" {
		cfg.StartOffset = kafka.LastOffset
	}
	return &Consumer{reader: kafka.NewReader(cfg)}
}

// Consume decodes messages and passes them to handle until ctx ends or handle
// fails. Undecodable messages are skipped.
func (c *Consumer) Consume(ctx context.Context, handle func(Envelope) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			continue
		}
		if err := handle(env); err != nil {
			return err
		}
	}
}

// Close releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
