// Package wsrouter implements transport.Socket on top of
// gorilla/websocket, standing in for a ZMQ ROUTER socket (§4.1, §6).
// Each accepted connection is assigned a uuid identity, the moral
// equivalent of a ZMQ ROUTER socket's per-peer routing id.
package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/equinor/faster-ee/internal/transport"
)

// Identity is the name the router front-end answers to on the wire,
// the stand-in for the ZMQ socket's own ROUTER identity.
const Identity = "faster_ee"

// Config configures a Router.
type Config struct {
	// Address is the listen address, e.g. ":8889".
	Address string
	// Linger bounds how long Close waits before tearing down
	// still-open connections, the websocket analogue of ZMQ's
	// ZMQ_LINGER socket option.
	Linger time.Duration
	// Curve, if non-nil, wraps every frame in anonymous sealed-box
	// encryption (§6).
	Curve *transport.KeyPair
	Logger *slog.Logger
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes concurrent writes to one connection
}

// Router is a transport.Socket backed by a websocket listener.
type Router struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu    sync.RWMutex
	peers map[string]*peer

	inbox chan transport.Frame
	ready atomic.Bool
	addr  net.Addr
}

var _ transport.Socket = (*Router)(nil)

// New builds a Router. Call Bind to start accepting connections.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		peers:    make(map[string]*peer),
		inbox:    make(chan transport.Frame, 4096),
	}
}

// inboundEnvelope is the client-side framing: every websocket message
// carries a sender name (client/dispatch/ert) alongside its payload,
// replacing the separate ROUTER name-frame.
type inboundEnvelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Bind starts the HTTP listener that upgrades incoming connections.
func (r *Router) Bind() error {
	ln, err := net.Listen("tcp", r.cfg.Address)
	if err != nil {
		return fmt.Errorf("wsrouter: bind %s: %w", r.cfg.Address, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", r.handleConn)
	r.server = &http.Server{Handler: mux}
	r.addr = ln.Addr()
	go func() {
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Error("router listener exited", "error", err)
		}
	}()
	r.ready.Store(true)
	r.logger.Info("router bound", "address", ln.Addr().String(), "identity", Identity)
	return nil
}

// Addr returns the listener's bound address, useful when Config.Address
// uses an ephemeral port (":0") and the caller needs to know which port
// was actually assigned. Returns nil before Bind succeeds.
func (r *Router) Addr() net.Addr {
	return r.addr
}

func (r *Router) handleConn(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.New()
	p := &peer{conn: conn}

	r.mu.Lock()
	r.peers[id.String()] = p
	r.mu.Unlock()

	r.logger.Debug("peer connected", "identity", id)
	r.readPump(id, p)
}

// readPump blocks reading frames off one connection and feeds them
// into the shared inbox, the goroutine-per-connection equivalent of
// ROUTER's single polling thread demultiplexing many peers.
func (r *Router) readPump(id uuid.UUID, p *peer) {
	defer func() {
		r.mu.Lock()
		delete(r.peers, id.String())
		r.mu.Unlock()
		p.conn.Close()
		r.logger.Debug("peer disconnected", "identity", id)
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if r.cfg.Curve != nil {
			plain, err := transport.Open(data, *r.cfg.Curve)
			if err != nil {
				r.logger.Warn("dropping frame: curve open failed", "identity", id, "error", err)
				continue
			}
			data = plain
		}
		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			r.logger.Warn("dropping frame: malformed envelope", "identity", id, "error", err)
			continue
		}
		r.inbox <- transport.Frame{
			Identity: []byte(id.String()),
			Name:     env.Name,
			Payload:  []byte(env.Payload),
		}
	}
}

// RecvMultipart returns the next queued frame without blocking,
// matching the ROUTER poll-then-sleep contract (§5).
func (r *Router) RecvMultipart() (transport.Frame, error) {
	select {
	case f := <-r.inbox:
		return f, nil
	default:
		return transport.Frame{}, transport.ErrWouldBlock
	}
}

// SendMultipart writes payload to the peer named by identity. Unknown
// or already-disconnected identities are reported, never silently
// dropped, so callers can decide whether to log and move on.
func (r *Router) SendMultipart(identity []byte, payload []byte) error {
	r.mu.RLock()
	p, ok := r.peers[string(identity)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsrouter: identity %q not connected", identity)
	}

	out := payload
	if r.cfg.Curve != nil {
		sealed, err := transport.Seal(payload, r.cfg.Curve.Public)
		if err != nil {
			return err
		}
		out = sealed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, out)
}

// Close sleeps for the configured linger so in-flight writes can land,
// then shuts the listener down and closes every peer.
func (r *Router) Close() error {
	r.ready.Store(false)
	if r.cfg.Linger > 0 {
		time.Sleep(r.cfg.Linger)
	}

	var closeErr error
	if r.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closeErr = r.server.Shutdown(ctx)
	}

	r.mu.Lock()
	for _, p := range r.peers {
		p.conn.Close()
	}
	r.peers = make(map[string]*peer)
	r.mu.Unlock()

	return closeErr
}

// PeerCount reports the number of currently connected peers of any
// role.
func (r *Router) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
