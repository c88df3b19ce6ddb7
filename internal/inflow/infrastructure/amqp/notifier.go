package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

const routingKey = "inflow.sync.completed"

type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Notifier announces finished sync runs on a fanout exchange.
type Notifier struct {
	log      *slog.Logger
	mu       sync.Mutex
	ch       Publisher
	exchange string
}

func NewNotifier(log *slog.Logger, ch Publisher, exchange string) *Notifier {
	return &Notifier{log: log, ch: ch, exchange: exchange}
}

// Dial connects and declares the exchange. The returned close func releases
// both the channel and the connection.
func Dial(log *slog.Logger, url, exchange string) (*Notifier, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}
	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewNotifier(log, ch, exchange), closeFn, nil
}

func (n *Notifier) NotifySyncCompleted(ctx context.Context, event domain.SyncCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.RunID,
		Timestamp:    time.Now().UTC(),
		Type:         "SyncCompleted",
		Body:         body,
	})
	if err != nil {
		return err
	}
	n.log.Debug("sync completion published", "run_id", event.RunID, "exchange", n.exchange)
	return nil
}
