// Package frontend implements the router front-end's classification,
// acknowledgement, and CONNECT/DISCONNECT presence-set protocol (§4.1)
// on top of the narrow transport.Socket interface. It is the only
// package that sees raw transport.Frame values; everything downstream
// works with decoded events.Event.
package frontend

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/transport"
)

// Role identifies which presence set a frame's sender belongs to.
type Role int

const (
	RoleUnknown Role = iota
	RoleClient
	RoleDispatch
	RoleERT
)

var ackPayload = []byte("ACK")

const (
	connectPayload    = "CONNECT"
	disconnectPayload = "DISCONNECT"
)

func classify(name string) Role {
	switch {
	case strings.HasPrefix(name, "client"):
		return RoleClient
	case strings.HasPrefix(name, "dispatch"):
		return RoleDispatch
	case strings.HasPrefix(name, "ert"):
		return RoleERT
	default:
		return RoleUnknown
	}
}

// Inbound is one decoded event handed to the ingest stage, tagged
// with the sender's role and identity.
type Inbound struct {
	Role     Role
	Identity []byte
	Event    events.Event
}

// Front owns the presence sets and full-snapshot-on-connect trigger
// described in §4.1. It wraps a transport.Socket and hands decoded
// events to the caller's ingest function.
type Front struct {
	sock   transport.Socket
	logger *slog.Logger

	mu          sync.Mutex
	clients     map[string]struct{}
	dispatchers map[string]struct{}
	ertIdentity []byte

	// OnClientConnect is invoked (with the mutex released) whenever a
	// client identity is freshly inserted or re-inserted, so the
	// caller can push it a full snapshot event immediately.
	OnClientConnect func(identity []byte)
}

// New wraps sock. logger defaults to slog.Default if nil.
func New(sock transport.Socket, logger *slog.Logger) *Front {
	if logger == nil {
		logger = slog.Default()
	}
	return &Front{
		sock:        sock,
		logger:      logger,
		clients:     make(map[string]struct{}),
		dispatchers: make(map[string]struct{}),
	}
}

// Poll drains every currently queued inbound frame, handling
// CONNECT/DISCONNECT control payloads itself and decoding everything
// else into an Inbound. transport.ErrWouldBlock ends the drain; it is
// not an error from the caller's point of view.
func (f *Front) Poll() []Inbound {
	var out []Inbound
	for {
		frame, err := f.sock.RecvMultipart()
		if err == transport.ErrWouldBlock {
			return out
		}
		if err != nil {
			f.logger.Error("router recv failed", "error", err)
			return out
		}

		role := classify(frame.Name)
		if role == RoleUnknown {
			f.logger.Warn("dropping frame from unrecognized sender", "name", frame.Name)
			continue
		}

		if err := f.sock.SendMultipart(frame.Identity, ackPayload); err != nil {
			f.logger.Warn("ack send failed", "identity", frame.Identity, "error", err)
		}

		switch string(frame.Payload) {
		case connectPayload:
			f.handleConnect(role, frame.Identity)
			continue
		case disconnectPayload:
			f.handleDisconnect(role, frame.Identity)
			continue
		}

		ev, err := events.Decode(frame.Payload)
		if err != nil {
			f.logger.Warn("dropping frame: decode failed", "identity", frame.Identity, "error", err)
			continue
		}
		out = append(out, Inbound{Role: role, Identity: frame.Identity, Event: ev})
	}
}

func (f *Front) handleConnect(role Role, identity []byte) {
	key := string(identity)

	switch role {
	case RoleClient:
		f.mu.Lock()
		_, known := f.clients[key]
		f.clients[key] = struct{}{}
		f.mu.Unlock()

		if known {
			f.logger.Warn("client reconnected", "identity", identity)
		} else {
			f.logger.Info("client connected", "identity", identity)
		}
		if f.OnClientConnect != nil {
			f.OnClientConnect(identity)
		}

	case RoleDispatch:
		f.mu.Lock()
		f.dispatchers[key] = struct{}{}
		f.mu.Unlock()
		f.logger.Info("dispatcher connected", "identity", identity)

	case RoleERT:
		f.mu.Lock()
		overwritten := f.ertIdentity != nil && !bytes.Equal(f.ertIdentity, identity)
		f.ertIdentity = append([]byte(nil), identity...)
		f.mu.Unlock()
		if overwritten {
			f.logger.Warn("ert identity replaced", "identity", identity)
		} else {
			f.logger.Info("ert connected", "identity", identity)
		}
	}
}

func (f *Front) handleDisconnect(role Role, identity []byte) {
	key := string(identity)

	f.mu.Lock()
	switch role {
	case RoleClient:
		delete(f.clients, key)
	case RoleDispatch:
		delete(f.dispatchers, key)
	case RoleERT:
		if bytes.Equal(f.ertIdentity, identity) {
			f.ertIdentity = nil
		}
	}
	f.mu.Unlock()
	f.logger.Info("peer disconnected", "identity", identity, "role", role)
}

// ConnectClient registers identity as a connected client, as if a
// CONNECT control frame had just arrived from it. Exposed for
// callers that need to seed presence without a live socket round
// trip; OnClientConnect still fires.
func (f *Front) ConnectClient(identity []byte) { f.handleConnect(RoleClient, identity) }

// ConnectERT registers identity as the current ERT peer.
func (f *Front) ConnectERT(identity []byte) { f.handleConnect(RoleERT, identity) }

// ConnectDispatch registers identity as a connected dispatcher.
func (f *Front) ConnectDispatch(identity []byte) { f.handleConnect(RoleDispatch, identity) }

// Clients returns a snapshot of currently connected client identities.
func (f *Front) Clients() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, 0, len(f.clients))
	for k := range f.clients {
		out = append(out, []byte(k))
	}
	return out
}

// ERTIdentity returns the current ERT identity, or nil if none is
// connected.
func (f *Front) ERTIdentity() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ertIdentity == nil {
		return nil
	}
	return append([]byte(nil), f.ertIdentity...)
}

// Send writes payload to identity through the wrapped socket.
func (f *Front) Send(identity, payload []byte) error {
	return f.sock.SendMultipart(identity, payload)
}
