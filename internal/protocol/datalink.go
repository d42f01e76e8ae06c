package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging"
	"github.com/medisync/registry/pkg/metrics"
)

// DataLink is one session's handle on the data channel. A broadcast carries
// the complete ordered record list, never a delta: whoever applies the latest
// snapshot verbatim has converged with the publisher, regardless of what it
// held before or in what order older snapshots arrived.
type DataLink struct {
	ch      messaging.Channel
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDataLink(bus messaging.Bus, log *logger.Logger, m *metrics.Metrics) (*DataLink, error) {
	ch, err := bus.Open(PatientsSyncChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to open data channel: %w", err)
	}
	return &DataLink{ch: ch, logger: log, metrics: m}, nil
}

// Broadcast publishes the full snapshot to every other live session.
func (l *DataLink) Broadcast(ctx context.Context, patients []model.Patient) error {
	msg, err := messaging.NewMessage(EventNewPatientRegistered, patients)
	if err != nil {
		return fmt.Errorf("failed to build snapshot message: %w", err)
	}
	wire, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot message: %w", err)
	}
	if err := l.ch.Publish(ctx, wire); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	if l.metrics != nil {
		l.metrics.SnapshotsPublished.Inc()
		l.metrics.SnapshotSize.Observe(float64(len(patients)))
	}
	l.logger.Debug("snapshot broadcast", "records", len(patients))
	return nil
}

// Subscribe dispatches every received snapshot to fn. Envelopes of other
// types and malformed payloads are dropped.
func (l *DataLink) Subscribe(fn func([]model.Patient)) error {
	return l.ch.Subscribe(func(payload []byte) {
		msg, err := messaging.Decode(payload)
		if err != nil {
			l.logger.Warn("dropping malformed data channel message", "error", err.Error())
			return
		}
		if msg.Type != EventNewPatientRegistered {
			return
		}

		var patients []model.Patient
		if err := json.Unmarshal(msg.Payload, &patients); err != nil {
			l.logger.Warn("dropping undecodable snapshot", "error", err.Error())
			return
		}

		if l.metrics != nil {
			l.metrics.SnapshotsApplied.Inc()
		}
		fn(patients)
	})
}

func (l *DataLink) Close() error {
	return l.ch.Close()
}
