// Package reduce implements the reducer worker and the ensemble state
// machine: it folds each batch into the main snapshot and emits the
// resulting delta or full snapshot for the publisher (§4.5).
package reduce

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/equinor/faster-ee/internal/batch"
	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/queue"
	"github.com/equinor/faster-ee/internal/snapshot"
	"github.com/equinor/faster-ee/internal/state"
)

// TerminalObserver is notified, best-effort, whenever the ensemble
// reaches a terminal state (Succeeded, Failed, Cancelled). Both the
// audit archive and the ops-telemetry bridge implement it; neither
// failure may affect the reducer's own control flow.
type TerminalObserver interface {
	ObserveTerminal(ensembleID string, final snapshot.EnsembleState, main *snapshot.EnsembleSnapshot)
}

// Reducer owns the ensemble state machine.
type Reducer struct {
	logger   *slog.Logger
	state    *state.State
	outbound *queue.Queue[outbound.Event]
	running  *atomic.Bool
	observer TerminalObserver
}

// New builds a Reducer. observer may be nil.
func New(logger *slog.Logger, st *state.State, out *queue.Queue[outbound.Event], running *atomic.Bool, observer TerminalObserver) *Reducer {
	return &Reducer{logger: logger, state: st, outbound: out, running: running, observer: observer}
}

// Run is the reducer worker loop: while running is true or the
// batches queue still has content, pop one batch and process every
// destination it touched (§4.5, §4.8). An empty pop triggers a 500ms
// sleep (§5) rather than busy-spinning while the batcher is idle.
func (r *Reducer) Run(in *queue.Queue[batch.Batch]) {
	for r.running.Load() || in.Len() > 0 {
		b, ok := in.Pop()
		if !ok {
			time.Sleep(500 * time.Millisecond)
			continue
		}
		r.processBatch(b)
	}
	r.logger.Info("reducer stopped")
}

func (r *Reducer) processBatch(b batch.Batch) {
	if evts, ok := b[batch.DestFMHandler]; ok {
		r.handleFM(evts)
	}
	if evts, ok := b[batch.DestEnsembleStarted]; ok {
		r.handleEnsembleStarted(evts)
	}
	if evts, ok := b[batch.DestEnsembleSucceeded]; ok {
		r.handleEnsembleSucceeded(evts)
	}
	if evts, ok := b[batch.DestEnsembleFailed]; ok {
		r.handleEnsembleFailed(evts)
	}
	if evts, ok := b[batch.DestEnsembleCancelled]; ok {
		r.handleEnsembleCancelled(evts)
	}
	if evts, ok := b[batch.DestEESnapshotUpdate]; ok {
		r.handleEESnapshotUpdate(evts)
	}
	if evts, ok := b[batch.DestEEFullSnapshot]; ok {
		r.handleEEFullSnapshot(evts)
	}
}

// applyAndEmit derives a delta from evts against the live main
// snapshot, merges it in, and enqueues the synced delta as an
// ee.snapshot_update. It is shared by every handler that "applies
// delta and emits" without special-casing the emitted content.
func (r *Reducer) applyAndEmit(evts []events.Event) {
	var delta *snapshot.EnsembleSnapshot
	r.state.WithMainRLock(func(main *snapshot.EnsembleSnapshot) {
		delta = snapshot.UpdateFromEvents(main, evts)
	})
	r.state.Merge(delta)
	r.outbound.Push(outbound.SnapshotUpdate{Snapshot: delta.Sync(), Ensemble: r.state.EnsembleID()})
}

// handleFM always runs, regardless of ensemble status (§4.5).
func (r *Reducer) handleFM(evts []events.Event) {
	r.applyAndEmit(evts)
}

func (r *Reducer) handleEnsembleStarted(evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	if first, ok := evts[0].(events.EnsembleEvent); ok {
		r.state.SetEnsembleID(first.EnsembleID)
	}
	if r.state.Status() == snapshot.EnsembleFailed {
		return
	}
	r.applyAndEmit(evts)
	r.state.SetStatus(snapshot.EnsembleStarted)
}

func (r *Reducer) handleEnsembleSucceeded(evts []events.Event) {
	if r.state.Status() == snapshot.EnsembleFailed {
		return
	}
	detectOverspentCPU(r.state.Main())
	r.applyAndEmit(evts)
	r.state.SetStatus(snapshot.EnsembleSucceeded)
	r.notifyTerminal(snapshot.EnsembleSucceeded)
}

func (r *Reducer) handleEnsembleFailed(evts []events.Event) {
	status := r.state.Status()
	if status == snapshot.EnsembleFailed || status == snapshot.EnsembleCancelled {
		return
	}
	r.applyAndEmit(evts)
	r.state.SetStatus(snapshot.EnsembleFailed)
	r.notifyTerminal(snapshot.EnsembleFailed)
	r.signalCancel()
}

func (r *Reducer) handleEnsembleCancelled(evts []events.Event) {
	if r.state.Status() == snapshot.EnsembleFailed {
		return
	}
	r.applyAndEmit(evts)
	r.state.SetStatus(snapshot.EnsembleCancelled)
	r.notifyTerminal(snapshot.EnsembleCancelled)
	r.running.Store(false)
}

// handleEESnapshotUpdate merges every carried delta into main, then
// emits the *current full main*, not just the merged delta. This
// preserves an observed quirk rather than what a literal reading of
// the handler's name would suggest (§9 open question (a)).
func (r *Reducer) handleEESnapshotUpdate(evts []events.Event) {
	full := r.mergeWireSnapshots(evts)
	r.outbound.Push(outbound.SnapshotUpdate{Snapshot: full.Sync(), Ensemble: r.state.EnsembleID()})
}

// handleEEFullSnapshot behaves like handleEESnapshotUpdate today; the
// destination stays distinct so the two can diverge later without a
// routing change (§9).
func (r *Reducer) handleEEFullSnapshot(evts []events.Event) {
	full := r.mergeWireSnapshots(evts)
	r.outbound.Push(outbound.FullSnapshot{Snapshot: full.Sync(), Ensemble: r.state.EnsembleID()})
}

func (r *Reducer) mergeWireSnapshots(evts []events.Event) *snapshot.EnsembleSnapshot {
	var full *snapshot.EnsembleSnapshot
	for _, evt := range evts {
		var wire events.WireSnapshot
		switch e := evt.(type) {
		case events.SnapshotDeltaEvent:
			wire = e.Snapshot
		case events.FullSnapshotEvent:
			wire = e.Snapshot
		default:
			continue
		}
		full = r.state.Merge(snapshot.FromWire(wire))
	}
	if full == nil {
		full = r.state.Main()
	}
	return full
}

// signalCancel enqueues the cancellation ERT must act on and stops
// every worker loop. It is idempotent: repeated calls just enqueue a
// harmless extra UserCancelledEE and re-clear an already-false flag
// (§5).
func (r *Reducer) signalCancel() {
	r.outbound.Push(outbound.UserCancelledEE{EnsembleID: r.state.EnsembleID()})
	r.running.Store(false)
}

func (r *Reducer) notifyTerminal(final snapshot.EnsembleState) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveTerminal(r.state.EnsembleID(), final, r.state.Main())
}

// detectOverspentCPU is a stubbed hook: the spec reserves the
// decision point but does not define the heuristic (§9 open question
// (b)).
func detectOverspentCPU(main *snapshot.EnsembleSnapshot) bool {
	_ = main
	return false
}
