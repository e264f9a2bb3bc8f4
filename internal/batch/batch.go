// Package batch implements the batcher worker: it aggregates events
// popped off the events queue into per-destination-handler batches
// that the reducer later processes as a unit (§4.4).
package batch

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/queue"
)

// Destination identifies which reducer handler a batch of events is
// routed to.
type Destination int

const (
	DestFMHandler Destination = iota
	DestEnsembleStarted
	DestEnsembleSucceeded
	DestEnsembleFailed
	DestEnsembleCancelled
	DestEESnapshotUpdate
	DestEEFullSnapshot
)

func (d Destination) String() string {
	switch d {
	case DestFMHandler:
		return "FMHandler"
	case DestEnsembleStarted:
		return "EnsembleStarted"
	case DestEnsembleSucceeded:
		return "EnsembleSucceeded"
	case DestEnsembleFailed:
		return "EnsembleFailed"
	case DestEnsembleCancelled:
		return "EnsembleCancelled"
	case DestEESnapshotUpdate:
		return "EESnapshotUpdate"
	case DestEEFullSnapshot:
		return "EEFullSnapshot"
	default:
		return "unknown"
	}
}

// Batch maps every destination touched in one window to its ordered
// events. Processing order across destinations is unspecified; the
// reducer's handlers are commutative under the merge rule (§4.5).
type Batch map[Destination][]events.Event

// Config bounds one batch window.
type Config struct {
	MaxBatchSize     int
	BatchingInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 500
	}
	if c.BatchingInterval <= 0 {
		c.BatchingInterval = time.Second
	}
	return c
}

const backlogWarnThreshold = 500

// destinationFor classifies one decoded event per §4.4's routing
// table. ok is false for event kinds that never reach the batcher
// (e.g. a checksum, which ingest already routed straight to outbound).
func destinationFor(ev events.Event) (Destination, bool) {
	switch v := ev.(type) {
	case events.FMStepEvent:
		return DestFMHandler, true
	case events.RealizationEvent:
		return DestFMHandler, true
	case events.EnsembleEvent:
		switch v.DerivedState() {
		case "Started":
			return DestEnsembleStarted, true
		case "Succeeded":
			return DestEnsembleSucceeded, true
		case "Failed":
			return DestEnsembleFailed, true
		case "Cancelled":
			return DestEnsembleCancelled, true
		default:
			return 0, false
		}
	case events.SnapshotDeltaEvent:
		return DestEESnapshotUpdate, true
	case events.FullSnapshotEvent:
		return DestEEFullSnapshot, true
	default:
		return 0, false
	}
}

// Collect pops events off in for up to cfg.BatchingInterval, or until
// cfg.MaxBatchSize events have been consumed, grouping them by
// destination. An empty pop triggers a 100ms sleep and does not
// consume a count slot (§4.4). Collect returns nil when the window
// produced no batchable event.
func Collect(logger *slog.Logger, in *queue.Queue[events.Event], cfg Config) Batch {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.BatchingInterval)
	batch := Batch{}
	count := 0

	for count < cfg.MaxBatchSize && time.Now().Before(deadline) {
		ev, ok := in.Pop()
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		count++
		dest, ok := destinationFor(ev)
		if !ok {
			logger.Warn("dropping event with no batch destination", "type", fmt.Sprintf("%T", ev))
			continue
		}
		batch[dest] = append(batch[dest], ev)
	}

	if backlog := in.Len(); backlog > backlogWarnThreshold {
		logger.Warn("events queue backlog exceeds threshold", "backlog", backlog, "threshold", backlogWarnThreshold)
	}

	if len(batch) == 0 {
		return nil
	}
	return batch
}

// Run is the batcher worker loop: while running is true or the events
// queue still has content, collect one window and push any non-empty
// batch onto out (§4.4, §4.8).
func Run(logger *slog.Logger, in *queue.Queue[events.Event], out *queue.Queue[Batch], cfg Config, running *atomic.Bool) {
	for running.Load() || in.Len() > 0 {
		if b := Collect(logger, in, cfg); b != nil {
			out.Push(b)
		}
	}
	logger.Info("batcher stopped")
}
