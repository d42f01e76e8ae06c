package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medisync/registry/pkg/messaging"
)

// Bus is a redis pub/sub backed broadcast transport for sessions running in
// separate processes. Redis delivers published messages back to the
// publishing connection, which the bus contract forbids; every handle
// therefore stamps an origin ID on each frame and discards frames carrying
// its own.
type Bus struct {
	client *redis.Client
	logger *zerolog.Logger
}

type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int
}

// frame is the wire wrapper around a channel payload.
type frame struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func NewBus(config Config, logger *zerolog.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Bus{client: client, logger: logger}, nil
}

func (b *Bus) Open(name string) (messaging.Channel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := &channel{
		bus:    b,
		name:   name,
		origin: uuid.NewString(),
		pubsub: b.client.Subscribe(ctx, name),
		cancel: cancel,
	}

	go ch.receive(ctx)

	return ch, nil
}

func (b *Bus) Close() error {
	return b.client.Close()
}

type channel struct {
	bus    *Bus
	name   string
	origin string
	pubsub *redis.PubSub
	cancel context.CancelFunc

	mu       sync.RWMutex
	handlers []messaging.Handler

	closeOnce sync.Once
	closed    bool
}

func (c *channel) receive(ctx context.Context) {
	msgs := c.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				c.bus.logger.Warn().Err(err).Str("channel", c.name).Msg("dropping malformed bus frame")
				continue
			}
			if f.Origin == c.origin {
				continue
			}

			c.mu.RLock()
			handlers := make([]messaging.Handler, len(c.handlers))
			copy(handlers, c.handlers)
			c.mu.RUnlock()

			for _, h := range handlers {
				h(f.Data)
			}
		}
	}
}

func (c *channel) Publish(ctx context.Context, payload []byte) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		// Send after close is a no-op, not an error.
		return nil
	}

	wire, err := json.Marshal(frame{Origin: c.origin, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal bus frame: %w", err)
	}
	return c.bus.client.Publish(ctx, c.name, wire).Err()
}

func (c *channel) Subscribe(h messaging.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
	return nil
}

func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		if err := c.pubsub.Close(); err != nil {
			c.bus.logger.Warn().Err(err).Str("channel", c.name).Msg("failed to close subscription")
		}
	})
	return nil
}
