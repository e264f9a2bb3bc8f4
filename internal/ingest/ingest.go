// Package ingest implements the pure routing step between a decoded
// inbound frame and the broker's internal queues (§4.3). It holds no
// worker loop of its own; the listener calls Route for every frame
// frontend.Front.Poll hands back.
package ingest

import (
	"log/slog"
	"sync"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/frontend"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/queue"
)

// Queues is the subset of broker-wide queues ingest feeds.
type Queues struct {
	Events   *queue.Queue[events.Event]
	Outbound *queue.Queue[outbound.Event]
}

// EnsembleIDCarrier is the reader-writer-locked ensemble_id ingest
// opportunistically captures off an ERT snapshot event (§4.3, §5).
// The broker-wide state.State satisfies this; Shared is a standalone
// implementation for callers (tests) that don't need the rest of
// state.State.
type EnsembleIDCarrier interface {
	SetEnsembleID(string)
	EnsembleID() string
}

// Shared is a minimal EnsembleIDCarrier.
type Shared struct {
	mu         sync.RWMutex
	ensembleID string
}

// SetEnsembleID records id, replacing whatever was captured before.
func (s *Shared) SetEnsembleID(id string) {
	s.mu.Lock()
	s.ensembleID = id
	s.mu.Unlock()
}

// EnsembleID returns the most recently captured ensemble id, or "" if
// none has been observed yet.
func (s *Shared) EnsembleID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensembleID
}

// Route applies one decoded inbound event to q and shared, per §4.3's
// routing table. It reports stop=true when the caller must transition
// running to false (observed only on ee.user_done, per §7).
func Route(logger *slog.Logger, in frontend.Inbound, q Queues, shared EnsembleIDCarrier) (stop bool) {
	switch ev := in.Event.(type) {
	case events.FMStepEvent:
		q.Events.Push(ev)

	case events.EnsembleEvent:
		q.Events.Push(ev)

	case events.RealizationEvent:
		q.Events.Push(ev)

	case events.ChecksumEvent:
		q.Outbound.Push(outbound.Checksum{Event: ev})

	case events.SnapshotDeltaEvent:
		if ev.Ensemble != "" {
			shared.SetEnsembleID(ev.Ensemble)
		}
		q.Events.Push(ev)

	case events.FullSnapshotEvent:
		if ev.Ensemble != "" {
			shared.SetEnsembleID(ev.Ensemble)
		}
		q.Events.Push(ev)

	case events.UserCancel:
		logger.Info("user cancel received, forwarding to ert")
		q.Outbound.Push(outbound.UserCancelledEE{
			EnsembleID: shared.EnsembleID(),
			Monitor:    ev.Monitor,
		})

	case events.UserDone:
		logger.Info("user done received, stopping")
		q.Outbound.Push(outbound.UserDone{Monitor: ev.Monitor})
		return true

	default:
		logger.Warn("dropping event of unhandled type", "role", in.Role)
	}
	return false
}
