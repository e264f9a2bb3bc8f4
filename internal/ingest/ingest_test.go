package ingest

import (
	"log/slog"
	"io"
	"testing"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/frontend"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/queue"
)

func newQueues() Queues {
	return Queues{
		Events:   queue.New[events.Event](),
		Outbound: queue.New[outbound.Event](),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouteFMStepGoesToEvents(t *testing.T) {
	q := newQueues()
	stop := Route(discardLogger(), frontend.Inbound{Event: events.FMStepEvent{Real: "0", FMStep: "0"}}, q, &Shared{})
	if stop {
		t.Fatal("stop = true for an fm-step event")
	}
	if _, ok := q.Events.Pop(); !ok {
		t.Fatal("fm-step event was not pushed to the events queue")
	}
}

func TestRouteChecksumGoesToOutboundOnly(t *testing.T) {
	q := newQueues()
	Route(discardLogger(), frontend.Inbound{Event: events.ChecksumEvent{Real: "0"}}, q, &Shared{})
	if _, ok := q.Events.Pop(); ok {
		t.Fatal("checksum reached the events queue")
	}
	if _, ok := q.Outbound.Pop(); !ok {
		t.Fatal("checksum was not pushed to the outbound queue")
	}
}

func TestRouteSnapshotDeltaCapturesEnsembleID(t *testing.T) {
	q := newQueues()
	shared := &Shared{}
	Route(discardLogger(), frontend.Inbound{Event: events.SnapshotDeltaEvent{Ensemble: "ens-1"}}, q, shared)
	if got := shared.EnsembleID(); got != "ens-1" {
		t.Fatalf("EnsembleID() = %q, want %q", got, "ens-1")
	}
}

func TestRouteUserDoneStopsAndEnqueues(t *testing.T) {
	q := newQueues()
	stop := Route(discardLogger(), frontend.Inbound{Event: events.UserDone{}}, q, &Shared{})
	if !stop {
		t.Fatal("stop = false for ee.user_done")
	}
	out, ok := q.Outbound.Pop()
	if !ok {
		t.Fatal("user-done was not pushed to the outbound queue")
	}
	if _, ok := out.(outbound.UserDone); !ok {
		t.Fatalf("outbound event type = %T, want outbound.UserDone", out)
	}
}

func TestRouteUserCancelForwardsWithoutStopping(t *testing.T) {
	q := newQueues()
	shared := &Shared{}
	shared.SetEnsembleID("ens-1")
	stop := Route(discardLogger(), frontend.Inbound{Event: events.UserCancel{}}, q, shared)
	if stop {
		t.Fatal("stop = true for ee.user_cancel; only user-done stops ingest directly")
	}
	out, ok := q.Outbound.Pop()
	if !ok {
		t.Fatal("user-cancel did not enqueue a UserCancelledEE")
	}
	cancel, ok := out.(outbound.UserCancelledEE)
	if !ok {
		t.Fatalf("outbound event type = %T, want outbound.UserCancelledEE", out)
	}
	if cancel.EnsembleID != "ens-1" {
		t.Fatalf("EnsembleID = %q, want %q", cancel.EnsembleID, "ens-1")
	}
}
