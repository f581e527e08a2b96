// Package bus fans order events out to every hub instance.
//
// The order service publishes to the bus after a commit; each server process
// subscribes and hands messages to its local hub. Delivery is best effort and
// nothing is replayed to late subscribers.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/retry"

	"github.com/nhle/orderbell/internal/model"
)

// Drivers accepted by New.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverAMQP   = "amqp"
)

// Message is an envelope addressed to one or more hub rooms.
type Message struct {
	Rooms    []string       `json:"rooms"`
	Envelope model.Envelope `json:"envelope"`
}

// Handler receives messages from a subscription. It must not block.
type Handler func(Message)

// Bus publishes and subscribes to room-addressed messages.
type Bus interface {
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers fn and returns once the subscription is live.
	// Delivery stops when ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, fn Handler) error

	Close() error
}

func encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding bus message: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decoding bus message: %w", err)
	}
	return msg, nil
}

// Options selects and configures a bus driver.
type Options struct {
	Driver string
	Redis  RedisConfig
	AMQP   AMQPConfig
}

// New returns the bus for opts.Driver. An empty driver selects the memory bus.
func New(ctx context.Context, opts Options, strategy retry.Strategy) (Bus, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryBus(), nil
	case DriverRedis:
		b, err := NewRedisBus(ctx, opts.Redis, strategy)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverAMQP:
		b, err := NewAMQPBus(opts.AMQP, strategy)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", opts.Driver)
	}
}
