package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/pkg/jobs"
	"github.com/noah-isme/erp-status-api/pkg/messaging"
)

const forwardJobType = "forward_event"

type envelopePublisher interface {
	Publish(ctx context.Context, env messaging.Envelope) error
}

type eventSubscriber interface {
	SubscribeAll(handler events.Handler) []events.Subscription
	Unsubscribe(sub events.Subscription)
}

// EventForwarder copies every domain event onto the message broker through a
// background job queue, so slow brokers never block a status change.
type EventForwarder struct {
	producer envelopePublisher
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	subs     []events.Subscription
	bus      eventSubscriber
	now      func() time.Time
}

// NewEventForwarder builds the forwarder and its worker queue.
func NewEventForwarder(producer envelopePublisher, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &EventForwarder{producer: producer, metrics: metrics, logger: logger, now: time.Now}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	cfg.DeadLetter = f.deadLetter
	f.queue = jobs.NewQueue("event-forwarder", f.deliver, cfg)
	return f
}

// Start launches the workers and subscribes to bus.
func (f *EventForwarder) Start(ctx context.Context, bus eventSubscriber) {
	f.queue.Start(ctx)
	f.bus = bus
	f.subs = bus.SubscribeAll(f.enqueue)
}

// Stop unsubscribes and stops the workers. Events still queued are dropped.
func (f *EventForwarder) Stop() {
	if f.bus != nil {
		for _, sub := range f.subs {
			f.bus.Unsubscribe(sub)
		}
		f.subs = nil
	}
	if pending := f.queue.Pending(); pending > 0 {
		f.logger.Warn("dropping unforwarded events", zap.Int("pending", pending))
	}
	f.queue.Stop()
}

func (f *EventForwarder) enqueue(_ context.Context, evt events.Event) error {
	env, err := messaging.NewEnvelope(uuid.NewString(), string(evt.Type()), evt.Key(), f.now().UTC(), evt)
	if err != nil {
		return err
	}
	if err := f.queue.Enqueue(jobs.Job{ID: env.ID, Type: forwardJobType, Key: env.Key, Payload: env}); err != nil {
		f.metrics.RecordForwardedEvent(env.Type, "dropped")
		return fmt.Errorf("queue event %s: %w", env.Type, err)
	}
	return nil
}

func (f *EventForwarder) deliver(ctx context.Context, job jobs.Job) error {
	env, ok := job.Payload.(messaging.Envelope)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := f.producer.Publish(ctx, env); err != nil {
		f.metrics.RecordForwardedEvent(env.Type, "retry")
		return err
	}
	f.metrics.RecordForwardedEvent(env.Type, "sent")
	return nil
}

func (f *EventForwarder) deadLetter(job jobs.Job, err error) {
	eventType := job.Type
	if env, ok := job.Payload.(messaging.Envelope); ok {
		eventType = env.Type
	}
	f.metrics.RecordForwardedEvent(eventType, "failed")
	f.logger.Error("event forwarding gave up", zap.String("event_id", job.ID), zap.String("event", eventType), zap.Error(err))
}
