// Package evaluator wires the router front-end and the four pipeline
// stages into the long-lived worker set described by §4.8 and §5: a
// single shared atomic running flag, one goroutine per worker, joined
// on Stop.
package evaluator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/equinor/faster-ee/internal/batch"
	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/frontend"
	"github.com/equinor/faster-ee/internal/ingest"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/publish"
	"github.com/equinor/faster-ee/internal/queue"
	"github.com/equinor/faster-ee/internal/reduce"
	"github.com/equinor/faster-ee/internal/state"
	"github.com/equinor/faster-ee/internal/transport"
)

// Config configures the evaluator's worker set. Zero values fall back
// to the defaults named in spec.md §6.
type Config struct {
	MaxBatchSize      int
	BatchingInterval  time.Duration
	HeartbeatInterval time.Duration
	ListenerIdle      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 500
	}
	if c.BatchingInterval <= 0 {
		c.BatchingInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.ListenerIdle <= 0 {
		c.ListenerIdle = 500 * time.Millisecond
	}
	return c
}

// EE is the whole-broker struct shared, by immutable handle, across
// every worker goroutine (§9 "shared ownership").
type EE struct {
	logger *slog.Logger
	cfg    Config
	sock   transport.Socket
	front  *frontend.Front
	state  *state.State

	eventsQ   *queue.Queue[events.Event]
	batchesQ  *queue.Queue[batch.Batch]
	outboundQ *queue.Queue[outbound.Event]

	reducer *reduce.Reducer

	running atomic.Bool
	ready   atomic.Bool

	wg sync.WaitGroup
}

// New builds an EE around sock. observer (may be nil) is notified of
// terminal ensemble transitions for the audit archive and ops bridge.
func New(logger *slog.Logger, sock transport.Socket, cfg Config, observer reduce.TerminalObserver) *EE {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	st := state.New()
	front := frontend.New(sock, logger)

	ee := &EE{
		logger:    logger,
		cfg:       cfg,
		sock:      sock,
		front:     front,
		state:     st,
		eventsQ:   queue.New[events.Event](),
		batchesQ:  queue.New[batch.Batch](),
		outboundQ: queue.New[outbound.Event](),
	}
	front.OnClientConnect = func(identity []byte) {
		ee.sendFullSnapshot(identity)
	}
	ee.reducer = reduce.New(logger, st, ee.outboundQ, &ee.running, observer)
	return ee
}

func (ee *EE) sendFullSnapshot(identity []byte) {
	full := ee.state.Main()
	payload, err := outbound.EncodeForERT(outbound.FullSnapshot{Snapshot: full.Sync(), Ensemble: ee.state.EnsembleID()})
	if err != nil {
		ee.logger.Error("failed to encode full snapshot for new client", "error", err)
		return
	}
	if err := ee.front.Send(identity, payload); err != nil {
		ee.logger.Error("failed to send full snapshot to new client", "identity", identity, "error", err)
	}
}

// State exposes the shared ensemble state for read-only callers (the
// admin HTTP surface).
func (ee *EE) State() *state.State { return ee.state }

// Start binds the transport, then starts the listener, batcher,
// reducer, publisher, and heartbeat workers in that order (§4.8).
func (ee *EE) Start() error {
	if err := ee.sock.Bind(); err != nil {
		return fmt.Errorf("evaluator: bind transport: %w", err)
	}
	ee.ready.Store(true)
	ee.running.Store(true)

	ee.wg.Add(5)
	go func() { defer ee.wg.Done(); ee.runListener() }()
	go func() {
		defer ee.wg.Done()
		batch.Run(ee.logger, ee.eventsQ, ee.batchesQ, batch.Config{
			MaxBatchSize:     ee.cfg.MaxBatchSize,
			BatchingInterval: ee.cfg.BatchingInterval,
		}, &ee.running)
	}()
	go func() { defer ee.wg.Done(); ee.reducer.Run(ee.batchesQ) }()
	go func() {
		defer ee.wg.Done()
		publish.New(ee.logger, ee.front, &ee.running).Run(ee.outboundQ)
	}()
	go func() {
		defer ee.wg.Done()
		publish.RunHeartbeat(ee.front, ee.outboundQ, publish.HeartbeatConfig{Interval: ee.cfg.HeartbeatInterval}, &ee.running)
	}()

	ee.logger.Info("evaluator started")
	return nil
}

func (ee *EE) runListener() {
	shared := ee.state
	for ee.running.Load() {
		inbound := ee.front.Poll()
		if len(inbound) == 0 {
			time.Sleep(ee.cfg.ListenerIdle)
			continue
		}
		for _, in := range inbound {
			if ingest.Route(ee.logger, in, ingest.Queues{Events: ee.eventsQ, Outbound: ee.outboundQ}, shared) {
				ee.running.Store(false)
			}
		}
	}
	ee.logger.Info("listener stopped")
}

// Stop transitions running to false; each worker drains its own
// queue before exiting (§4.8). Stop blocks until every worker and the
// transport have shut down.
func (ee *EE) Stop() {
	ee.running.Store(false)
	ee.wg.Wait()
	if err := ee.sock.Close(); err != nil {
		ee.logger.Error("transport close failed", "error", err)
	}
	ee.ready.Store(false)
	ee.logger.Info("evaluator stopped")
}

// Ready reports whether the transport has completed binding (§4.1's
// "socket-ready flag").
func (ee *EE) Ready() bool { return ee.ready.Load() }
