package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the redis connection settings for the bridge.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RedisBridge implements Bridge over a redis pub/sub channel shared by
// all processes of one session.
type RedisBridge struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisBridge connects to redis and selects the per-session channel.
func NewRedisBridge(cfg RedisConfig, sessionID string) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBridge{
		client:  client,
		channel: sessionChannel(sessionID),
	}, nil
}

func sessionChannel(sessionID string) string {
	return fmt.Sprintf("feedsync:session:%s:changes", sessionID)
}

// Forward publishes the encoded event to the session channel.
func (b *RedisBridge) Forward(ctx context.Context, data []byte) error {
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Listen subscribes to the session channel and streams raw messages.
func (b *RedisBridge) Listen(ctx context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	out := make(chan []byte, 100)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				default:
					// Channel full, skip message
				}
			}
		}
	}()

	return out, nil
}

// Close shuts down the subscription and the redis client.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		b.pubsub.Close()
		b.pubsub = nil
	}
	return b.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ Bridge = (*RedisBridge)(nil)
