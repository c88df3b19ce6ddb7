package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns the writer used by the outbox relay. Messages are keyed by
// order number and hash-balanced, so events for one order stay on one
// partition and keep their order.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}
