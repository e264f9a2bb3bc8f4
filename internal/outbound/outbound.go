// Package outbound defines the events the reducer emits for the
// publisher to fan out, and their wire encodings for ERT and monitor
// clients (§4.6).
package outbound

import (
	"encoding/json"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/equinor/faster-ee/internal/snapshot"
)

// Event is implemented by every type the reducer may push onto the
// outbound queue.
type Event interface {
	isOutbound()
}

// HeartBeat is emitted by the heartbeat worker every interval while
// at least one client is connected (§4.7). Its wire payload is the
// literal bytes BEAT, for both ERT and clients.
type HeartBeat struct{}

func (HeartBeat) isOutbound() {}

// SnapshotUpdate carries a delta (or, per the documented
// EESnapshotUpdate handler behavior, the full main snapshot — see
// DESIGN.md open question (a)) snapshot to publish as
// ee.snapshot_update.
type SnapshotUpdate struct {
	Snapshot *snapshot.EnsembleSnapshot
	Ensemble string
}

func (SnapshotUpdate) isOutbound() {}

// FullSnapshot carries a full snapshot to publish as ee.snapshot.
type FullSnapshot struct {
	Snapshot *snapshot.EnsembleSnapshot
	Ensemble string
}

func (FullSnapshot) isOutbound() {}

// Checksum forwards a dispatcher checksum report unchanged, tagged
// with its forward_model_step.checksum event_type.
type Checksum struct {
	Event events.ChecksumEvent
}

func (Checksum) isOutbound() {}

// UserCancelledEE is the cancellation signal the reducer emits to ERT
// when the ensemble fails (§4.5 EnsembleFailed handler) or on a
// client-initiated cancel. It is never sent to monitor clients.
type UserCancelledEE struct {
	EnsembleID string
	Monitor    *string
}

func (UserCancelledEE) isOutbound() {}

// UserDone is the pass-through acknowledgement of a client ee.user_done
// forwarded to ERT only.
type UserDone struct {
	Monitor *string
}

func (UserDone) isOutbound() {}

var beatPayload = []byte("BEAT")

type snapshotEnvelope struct {
	EventType string              `json:"event_type"`
	Snapshot  events.WireSnapshot `json:"snapshot"`
	Ensemble  string              `json:"ensemble"`
}

type userCancelledPayload struct {
	EventType string  `json:"event_type"`
	Ensemble  string  `json:"ensemble"`
	Monitor   *string `json:"monitor,omitempty"`
}

type userDonePayload struct {
	EventType string  `json:"event_type"`
	Monitor   *string `json:"monitor,omitempty"`
}

// EncodeForERT renders e for delivery to the ERT peer. It returns a
// nil payload and nil error when the event type has no ERT encoding
// (none of the types defined here).
func EncodeForERT(e Event) ([]byte, error) {
	switch v := e.(type) {
	case HeartBeat:
		return beatPayload, nil
	case SnapshotUpdate:
		return json.Marshal(snapshotEnvelope{
			EventType: events.TypeEESnapshotUpdate,
			Snapshot:  snapshot.ToWire(v.Snapshot),
			Ensemble:  v.Ensemble,
		})
	case FullSnapshot:
		return json.Marshal(snapshotEnvelope{
			EventType: events.TypeEESnapshot,
			Snapshot:  snapshot.ToWire(v.Snapshot),
			Ensemble:  v.Ensemble,
		})
	case Checksum:
		return json.Marshal(struct {
			EventType string `json:"event_type"`
			events.ChecksumEvent
		}{EventType: events.TypeFMStepChecksum, ChecksumEvent: v.Event})
	case UserCancelledEE:
		return json.Marshal(userCancelledPayload{
			EventType: events.TypeEEUserCancel,
			Ensemble:  v.EnsembleID,
			Monitor:   v.Monitor,
		})
	case UserDone:
		return json.Marshal(userDonePayload{EventType: events.TypeEEUserDone, Monitor: v.Monitor})
	default:
		return nil, nil
	}
}

// EncodeForClient renders e for delivery to a monitor client. ok is
// false when e must not be sent to clients at all (UserCancelledEE,
// UserDone).
func EncodeForClient(e Event) (payload []byte, ok bool, err error) {
	switch e.(type) {
	case UserCancelledEE, UserDone:
		return nil, false, nil
	}
	payload, err = EncodeForERT(e)
	return payload, true, err
}
