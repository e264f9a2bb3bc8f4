package frontend

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/equinor/faster-ee/internal/transport"
)

type fakeSocket struct {
	in   []transport.Frame
	sent map[string][][]byte
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{sent: make(map[string][][]byte)}
}

func (s *fakeSocket) Bind() error  { return nil }
func (s *fakeSocket) Close() error { return nil }

func (s *fakeSocket) RecvMultipart() (transport.Frame, error) {
	if len(s.in) == 0 {
		return transport.Frame{}, transport.ErrWouldBlock
	}
	f := s.in[0]
	s.in = s.in[1:]
	return f, nil
}

func (s *fakeSocket) SendMultipart(identity, payload []byte) error {
	s.sent[string(identity)] = append(s.sent[string(identity)], payload)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturingLogger returns a logger whose text output can be inspected
// afterward, for tests that must assert something was actually logged.
func capturingLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestPollAcksRecognizedFrames(t *testing.T) {
	sock := newFakeSocket()
	sock.in = []transport.Frame{
		{Identity: []byte("client-1"), Name: "client", Payload: []byte(`{"event_type":"ee.user_done"}`)},
	}
	f := New(sock, discardLogger())
	f.Poll()

	acks := sock.sent["client-1"]
	if len(acks) != 1 || string(acks[0]) != "ACK" {
		t.Errorf("acks = %v, want one ACK", acks)
	}
}

func TestPollDropsUnknownSenderWithoutAck(t *testing.T) {
	sock := newFakeSocket()
	sock.in = []transport.Frame{
		{Identity: []byte("mystery-1"), Name: "mystery", Payload: []byte("hello")},
	}
	f := New(sock, discardLogger())
	out := f.Poll()

	if len(out) != 0 {
		t.Errorf("got %d inbound events, want 0", len(out))
	}
	if len(sock.sent["mystery-1"]) != 0 {
		t.Error("unrecognized sender should not be ACKed")
	}
}

func TestPollHandlesConnectAndDisconnect(t *testing.T) {
	sock := newFakeSocket()
	sock.in = []transport.Frame{
		{Identity: []byte("client-1"), Name: "client", Payload: []byte("CONNECT")},
		{Identity: []byte("client-1"), Name: "client", Payload: []byte("DISCONNECT")},
	}
	var connected [][]byte
	f := New(sock, discardLogger())
	f.OnClientConnect = func(identity []byte) {
		connected = append(connected, identity)
	}
	out := f.Poll()

	if len(out) != 0 {
		t.Errorf("CONNECT/DISCONNECT should not surface as Inbound events, got %d", len(out))
	}
	if len(connected) != 1 {
		t.Fatalf("OnClientConnect fired %d times, want 1", len(connected))
	}
	if len(f.Clients()) != 0 {
		t.Error("client should have been removed after DISCONNECT")
	}
}

func TestClientReconnectIsIdempotentAndWarns(t *testing.T) {
	sock := newFakeSocket()
	sock.in = []transport.Frame{
		{Identity: []byte("client-1"), Name: "client", Payload: []byte("CONNECT")},
		{Identity: []byte("client-1"), Name: "client", Payload: []byte("CONNECT")},
	}
	logger, logs := capturingLogger()
	var connected [][]byte
	f := New(sock, logger)
	f.OnClientConnect = func(identity []byte) {
		connected = append(connected, append([]byte(nil), identity...))
	}
	out := f.Poll()

	if len(out) != 0 {
		t.Errorf("CONNECT should not surface as an Inbound event, got %d", len(out))
	}
	if len(connected) != 2 {
		t.Fatalf("OnClientConnect fired %d times, want 2 (full snapshot on every CONNECT)", len(connected))
	}
	if len(f.Clients()) != 1 {
		t.Errorf("Clients() = %d, want exactly one entry after reconnecting", len(f.Clients()))
	}
	if !strings.Contains(logs.String(), "client reconnected") {
		t.Errorf("expected a reconnect warning to be logged, got: %s", logs.String())
	}
}

func TestERTIdentityLastWriterWins(t *testing.T) {
	f := New(newFakeSocket(), discardLogger())
	f.ConnectERT([]byte("ert-1"))
	f.ConnectERT([]byte("ert-2"))

	if string(f.ERTIdentity()) != "ert-2" {
		t.Errorf("ERTIdentity() = %q, want ert-2", f.ERTIdentity())
	}
}

func TestDecodeFailureDropsFrameSilently(t *testing.T) {
	sock := newFakeSocket()
	sock.in = []transport.Frame{
		{Identity: []byte("client-1"), Name: "client", Payload: []byte("not json")},
	}
	f := New(sock, discardLogger())
	out := f.Poll()
	if len(out) != 0 {
		t.Errorf("got %d inbound events for malformed payload, want 0", len(out))
	}
}
