// Package publish implements the publisher worker: it fans every
// outbound event out to ERT and to every connected monitor client
// (§4.6).
package publish

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/equinor/faster-ee/internal/frontend"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/queue"
)

// Publisher fans outbound events out to ERT and clients through the
// shared front-end.
type Publisher struct {
	logger  *slog.Logger
	front   *frontend.Front
	running *atomic.Bool
}

// New builds a Publisher.
func New(logger *slog.Logger, front *frontend.Front, running *atomic.Bool) *Publisher {
	return &Publisher{logger: logger, front: front, running: running}
}

// Run is the publisher worker loop: while running is true or the
// outbound queue still has content, pop and dispatch one event
// (§4.6, §4.8). An empty pop triggers a 500ms sleep (§5) rather than
// busy-spinning while the queue is momentarily drained.
func (p *Publisher) Run(in *queue.Queue[outbound.Event]) {
	for p.running.Load() || in.Len() > 0 {
		ev, ok := in.Pop()
		if !ok {
			time.Sleep(500 * time.Millisecond)
			continue
		}
		p.dispatch(ev)
	}
	p.logger.Info("publisher stopped")
}

func (p *Publisher) dispatch(ev outbound.Event) {
	ertPayload, err := outbound.EncodeForERT(ev)
	if err != nil {
		p.logger.Error("failed to encode outbound event for ert", "error", err)
	} else if ertPayload != nil {
		p.sendToERT(ev, ertPayload)
	}

	clientPayload, ok, err := outbound.EncodeForClient(ev)
	if err != nil {
		p.logger.Error("failed to encode outbound event for clients", "error", err)
		return
	}
	if !ok {
		return
	}
	for _, identity := range p.front.Clients() {
		if err := p.front.Send(identity, clientPayload); err != nil {
			p.logger.Error("send to client failed", "identity", identity, "error", err)
		}
	}
}

func (p *Publisher) sendToERT(ev outbound.Event, payload []byte) {
	identity := p.front.ERTIdentity()
	if identity == nil {
		if _, isChecksum := ev.(outbound.Checksum); isChecksum {
			p.logger.Error("no ert identity registered, dropping checksum")
		}
		return
	}
	if err := p.front.Send(identity, payload); err != nil {
		p.logger.Error("send to ert failed", "error", err)
	}
}

// EncodeHeartbeat returns the heartbeat wire payload, for callers
// (the heartbeat worker's tests) that want it without reaching into
// outbound directly.
func EncodeHeartbeat() []byte {
	payload, _ := outbound.EncodeForERT(outbound.HeartBeat{})
	return payload
}
