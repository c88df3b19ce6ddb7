package outbox

import (
	"context"
	"log/slog"
	"sort"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/inflow-order-sync/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// Dispatch publishes one event keyed by its aggregate id, so all events of an
// order land on the same partition.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: d.headers(event),
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "event_id", event.ID, "type", event.Type, "aggregate_id", event.AggregateID)
	return nil
}

func (d *Dispatcher) headers(event Event) []kafka.Header {
	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys)+2)
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: tracing.TraceparentHeader, Value: []byte(event.Traceparent)})
	}
	return headers
}
