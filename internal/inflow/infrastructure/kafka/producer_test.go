package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/inflow-order-sync/pkg/outbox"
)

var _ outbox.Producer = (*kafka.Writer)(nil)

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"k1:9092", "k2:9092"})
	defer w.Close()

	assert.Equal(t, "tcp", w.Addr.Network())
	assert.Contains(t, w.Addr.String(), "k1:9092")
	assert.Contains(t, w.Addr.String(), "k2:9092")
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Empty(t, w.Topic, "topic is set per message by the dispatcher")
}
