package messaging

import (
	"context"
	"encoding/json"
)

// Handler receives a raw message payload delivered on a channel.
type Handler func(payload []byte)

// Bus is an origin-scoped publish/subscribe transport. Each call to Open
// yields an independent handle on the named channel; handles on the same name
// form a broadcast group.
type Bus interface {
	Open(name string) (Channel, error)
	Close() error
}

// Channel is one live handle on a named broadcast group.
//
// Publish is fire-and-forget: delivery is at-most-once, in publish order for
// a single handle, and scoped to every *other* live handle on the same name.
// A handle never receives its own messages. There is no buffering: a handle
// opened after a publish never sees it. Publish after Close is a no-op.
// Close is idempotent and stops further delivery.
type Channel interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(h Handler) error
	Close() error
}

// Message is the envelope carried on every channel.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage wraps payload in an envelope of the given type.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

// Encode serializes the envelope for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire payload back into an envelope.
func Decode(payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
