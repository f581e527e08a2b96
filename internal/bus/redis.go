package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// RedisConfig holds the redis pub/sub connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// RedisBus fans messages out over a redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus connects to redis, retrying the initial ping with strategy.
func NewRedisBus(ctx context.Context, cfg RedisConfig, strategy retry.Strategy) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retry.Do(func() error {
		return client.Ping(ctx).Err()
	}, strategy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Address, err)
	}

	return &RedisBus{client: client, channel: cfg.Channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", b.channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, fn Handler) error {
	ps := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := decode([]byte(m.Payload))
				if err != nil {
					zlog.Logger.Warn().Err(err).Str("channel", m.Channel).Msg("dropping bus message")
					continue
				}
				fn(msg)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
