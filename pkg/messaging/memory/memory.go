package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/medisync/registry/pkg/messaging"
)

const queueSize = 100

// Bus is a process-scoped broadcast transport. Handles opened on the same
// channel name form a group; a publish fans out to every other live handle in
// the group and never back to the publisher.
type Bus struct {
	mu       sync.RWMutex
	channels map[string][]*channel
	closed   bool
}

func NewBus() *Bus {
	return &Bus{channels: make(map[string][]*channel)}
}

func (b *Bus) Open(name string) (messaging.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	ch := &channel{
		bus:   b,
		name:  name,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
	b.channels[name] = append(b.channels[name], ch)

	go ch.pump()

	return ch, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*channel
	for _, group := range b.channels {
		all = append(all, group...)
	}
	b.channels = make(map[string][]*channel)
	b.mu.Unlock()

	for _, ch := range all {
		ch.shutdown()
	}
	return nil
}

// peers returns every live handle on name other than self.
func (b *Bus) peers(name string, self *channel) []*channel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	group := b.channels[name]
	peers := make([]*channel, 0, len(group))
	for _, ch := range group {
		if ch != self {
			peers = append(peers, ch)
		}
	}
	return peers
}

func (b *Bus) remove(name string, self *channel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := b.channels[name]
	for i, ch := range group {
		if ch == self {
			b.channels[name] = append(group[:i], group[i+1:]...)
			break
		}
	}
	if len(b.channels[name]) == 0 {
		delete(b.channels, name)
	}
}

type channel struct {
	bus  *Bus
	name string

	mu       sync.RWMutex
	handlers []messaging.Handler

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// pump drains the delivery queue one message at a time, preserving arrival
// order for each subscriber.
func (c *channel) pump() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.queue:
			c.mu.RLock()
			handlers := make([]messaging.Handler, len(c.handlers))
			copy(handlers, c.handlers)
			c.mu.RUnlock()

			for _, h := range handlers {
				h(payload)
			}
		}
	}
}

func (c *channel) Publish(_ context.Context, payload []byte) error {
	select {
	case <-c.done:
		// Send after close is a no-op, not an error.
		return nil
	default:
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)

	for _, peer := range c.bus.peers(c.name, c) {
		select {
		case peer.queue <- cp:
		case <-peer.done:
		default:
			// Queue full: at-most-once delivery, drop rather than block.
		}
	}
	return nil
}

func (c *channel) Subscribe(h messaging.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
	return nil
}

func (c *channel) Close() error {
	c.shutdown()
	c.bus.remove(c.name, c)
	return nil
}

func (c *channel) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
