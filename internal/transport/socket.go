// Package transport defines the narrow send/recv interface the
// evaluator's router front-end depends on, so the message-processing
// pipeline never couples to a specific socket library (§1 Non-goals,
// §6 "consumed through a narrow send/recv interface"). wsrouter
// provides the one concrete implementation, standing in for a
// ZMQ-compatible ROUTER socket on top of gorilla/websocket.
package transport

import "errors"

// ErrWouldBlock is returned by RecvMultipart when no frame is
// currently available; callers poll with a sleep-based backoff, per
// §5's "non-blocking recv_multipart + loop sleep when idle".
var ErrWouldBlock = errors.New("transport: would block")

// Frame is one decoded inbound multipart message:
// [sender-identity, sender-name, <empty>, payload] flattened into a
// struct (the delimiter frame has no independent representation once
// the transport already length-delimits messages).
type Frame struct {
	Identity []byte
	Name     string
	Payload  []byte
}

// Socket is the narrow interface the router front-end, and nothing
// else in the pipeline, depends on.
type Socket interface {
	// Bind starts listening on the configured endpoint. It returns
	// once the socket is ready to accept connections.
	Bind() error

	// RecvMultipart returns the next inbound frame, or ErrWouldBlock
	// if none is currently queued.
	RecvMultipart() (Frame, error)

	// SendMultipart writes a single reply frame
	// [identity, <empty>, payload] to the peer with the given
	// identity. It is a no-op returning an error if the identity is
	// not currently connected.
	SendMultipart(identity []byte, payload []byte) error

	// Close releases all resources, honoring the configured linger.
	Close() error
}
