package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// AMQPConfig holds the RabbitMQ settings for the fanout bus.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPBus fans messages out through a RabbitMQ fanout exchange. Each
// subscriber gets its own exclusive, auto-deleted queue, so instances only
// see messages published while they are connected.
type AMQPBus struct {
	conn     *amqp.Connection
	pubMu    sync.Mutex
	pub      *amqp.Channel
	exchange string
}

// NewAMQPBus dials RabbitMQ with strategy and declares the exchange.
func NewAMQPBus(cfg AMQPConfig, strategy retry.Strategy) (*AMQPBus, error) {
	var conn *amqp.Connection
	err := retry.Do(func() error {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, strategy)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
	}

	return &AMQPBus{conn: conn, pub: ch, exchange: cfg.Exchange}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err = b.pub.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", b.exchange, err)
	}
	return nil
}

func (b *AMQPBus) Subscribe(ctx context.Context, fn Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening consumer channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declaring subscriber queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("binding %s to %s: %w", q.Name, b.exchange, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consuming %s: %w", q.Name, err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				msg, err := decode(d.Body)
				if err != nil {
					zlog.Logger.Warn().Err(err).Str("queue", q.Name).Msg("dropping bus message")
					continue
				}
				fn(msg)
			}
		}
	}()

	return nil
}

func (b *AMQPBus) Close() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if err := b.pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}
	return b.conn.Close()
}
