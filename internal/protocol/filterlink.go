package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging"
	"github.com/medisync/registry/pkg/metrics"
)

// FilterLink is one session's handle on the filter channel. Filter messages
// are ephemeral: a lost or out-of-order one costs nothing beyond stale search
// text, healed by the next keystroke.
type FilterLink struct {
	ch      messaging.Channel
	limiter *rate.Limiter
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewFilterLink opens the filter channel. limiter may be nil, in which case
// every local keystroke publishes, matching the original behavior; whether to
// gate keystroke storms is a deployment decision, not a protocol one.
func NewFilterLink(bus messaging.Bus, limiter *rate.Limiter, log *logger.Logger, m *metrics.Metrics) (*FilterLink, error) {
	ch, err := bus.Open(PatientsFilterChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to open filter channel: %w", err)
	}
	return &FilterLink{ch: ch, limiter: limiter, logger: log, metrics: m}, nil
}

// Broadcast publishes a locally originated search change. The caller is
// responsible for never routing remote-applied changes here; that is the
// echo-suppression contract, owned by the session.
func (l *FilterLink) Broadcast(ctx context.Context, search string) error {
	if l.limiter != nil && !l.limiter.Allow() {
		if l.metrics != nil {
			l.metrics.FilterRateLimited.Inc()
		}
		return nil
	}

	msg, err := messaging.NewMessage(EventFilterPatients, search)
	if err != nil {
		return fmt.Errorf("failed to build filter message: %w", err)
	}
	wire, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode filter message: %w", err)
	}
	if err := l.ch.Publish(ctx, wire); err != nil {
		return fmt.Errorf("failed to publish filter change: %w", err)
	}

	if l.metrics != nil {
		l.metrics.FilterPublished.Inc()
	}
	return nil
}

// Subscribe dispatches every received search string to fn.
func (l *FilterLink) Subscribe(fn func(string)) error {
	return l.ch.Subscribe(func(payload []byte) {
		msg, err := messaging.Decode(payload)
		if err != nil {
			l.logger.Warn("dropping malformed filter channel message", "error", err.Error())
			return
		}
		if msg.Type != EventFilterPatients {
			return
		}

		var search string
		if err := json.Unmarshal(msg.Payload, &search); err != nil {
			l.logger.Warn("dropping undecodable filter change", "error", err.Error())
			return
		}

		if l.metrics != nil {
			l.metrics.FilterApplied.Inc()
		}
		fn(search)
	})
}

func (l *FilterLink) Close() error {
	return l.ch.Close()
}
