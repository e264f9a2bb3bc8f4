// Package events implements the wire event taxonomy: a closed set of
// tagged-variant structs decoded from dispatcher/ERT/client JSON
// payloads, and their outbound encodings. Decoding is keyed on a
// string event_type discriminator; there is no reflection-based
// inheritance (see SPEC_FULL.md §9's design note on circular type
// references).
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// event_type discriminator strings, as fixed by SPEC_FULL.md §6.
const (
	TypeFMStepStart   = "forward_model_step.start"
	TypeFMStepRunning = "forward_model_step.running"
	TypeFMStepSuccess = "forward_model_step.success"
	TypeFMStepFailure = "forward_model_step.failure"
	TypeFMStepChecksum = "forward_model_step.checksum"

	TypeEnsembleStarted   = "ensemble.started"
	TypeEnsembleFailed    = "ensemble.failed"
	TypeEnsembleSucceeded = "ensemble.succeeded"
	TypeEnsembleCancelled = "ensemble.cancelled"

	TypeRealizationWaiting  = "realization.waiting"
	TypeRealizationPending  = "realization.pending"
	TypeRealizationRunning  = "realization.running"
	TypeRealizationSuccess  = "realization.success"
	TypeRealizationFailure  = "realization.failure"
	TypeRealizationUnknown  = "realization.unknown"
	TypeRealizationTimeout  = "realization.timeout"

	TypeEESnapshotUpdate = "ee.snapshot_update"
	TypeEESnapshot       = "ee.snapshot"
	TypeEEUserCancel     = "ee.user_cancel"
	TypeEEUserDone       = "ee.user_done"
)

// Kind classifies a decoded Event for routing purposes (ingest §4.3,
// batch §4.4) without requiring callers to type-switch on the
// concrete struct.
type Kind int

const (
	KindFMStep Kind = iota
	KindChecksum
	KindEnsemble
	KindRealization
	KindSnapshotUpdate
	KindFullSnapshot
	KindUserCancel
	KindUserDone
)

// Event is implemented by every decoded inbound variant.
type Event interface {
	Kind() Kind
}

// FMStepEvent carries a forward-model-step lifecycle transition.
// EventType retains the original discriminator so callers can tell
// Start/Running/Success/Failure apart without re-deriving it.
type FMStepEvent struct {
	EventType         string
	Time              time.Time
	FMStep            string
	Real              string
	Ensemble          *string
	Stdout            *string
	Stderr            *string
	CurrentMemoryUsed *int64
	MaxMemoryUsed     *int64
	CPUSeconds        *float64
	Error             *string
}

func (FMStepEvent) Kind() Kind { return KindFMStep }

// ChecksumFile is one file entry of a forward-model-step checksum
// report.
type ChecksumFile struct {
	Type         string  `json:"type"`
	Path         string  `json:"path"`
	MD5Sum       *string `json:"md5sum,omitempty"`
	Error        *string `json:"error,omitempty"`
	Time         time.Time `json:"time"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type ChecksumSet struct {
	Data    map[string]ChecksumFile `json:"data"`
	RunPath string                  `json:"run_path"`
}

// ChecksumEvent carries a forward-model-step checksum report. It is
// forward-only: it is routed straight to the outbound queue and never
// reaches the internal events queue or the main snapshot (§8
// invariant).
type ChecksumEvent struct {
	Ensemble  *string                `json:"ensemble,omitempty"`
	Real      string                 `json:"real"`
	Checksums map[string]ChecksumSet `json:"checksums"`
}

func (ChecksumEvent) Kind() Kind { return KindChecksum }

// EnsembleEvent carries an ensemble-level lifecycle transition.
type EnsembleEvent struct {
	EventType  string
	EnsembleID string
	Time       time.Time
}

func (EnsembleEvent) Kind() Kind { return KindEnsemble }

// RealizationEvent carries a realization-level lifecycle transition.
type RealizationEvent struct {
	EventType      string
	Real           string
	Time           time.Time
	Ensemble       *string
	QueueEventType *string
	ExecHosts      *string
	Message        *string
}

func (RealizationEvent) Kind() Kind { return KindRealization }

// WireFMStep is the nested fm-step shape inside a snapshot envelope.
type WireFMStep struct {
	Status            *string    `json:"status"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	Index             *string    `json:"index,omitempty"`
	CPUSeconds        *float64   `json:"cpu_seconds,omitempty"`
	CurrentMemoryUsed *int64     `json:"current_memory_usage,omitempty"`
	MaxMemoryUsed     *int64     `json:"max_memory_usage,omitempty"`
	Name              *string    `json:"name,omitempty"`
	Error             *string    `json:"error,omitempty"`
	Stdout            *string    `json:"stdout,omitempty"`
	Stderr            *string    `json:"stderr,omitempty"`
}

// WireRealization is the nested realization shape inside a snapshot
// envelope.
type WireRealization struct {
	Status    *string               `json:"status"`
	Active    *bool                 `json:"active,omitempty"`
	StartTime *time.Time            `json:"start_time,omitempty"`
	EndTime   *time.Time            `json:"end_time,omitempty"`
	ExecHosts *string               `json:"exec_hosts,omitempty"`
	Message   *string               `json:"message,omitempty"`
	FmSteps   map[string]WireFMStep `json:"fm_steps,omitempty"`
}

// WireSnapshot is the `snapshot` object of a snapshot envelope.
type WireSnapshot struct {
	Reals  map[string]WireRealization `json:"reals,omitempty"`
	Status *string                    `json:"status,omitempty"`
}

// SnapshotDeltaEvent is `ee.snapshot_update` received from ERT.
type SnapshotDeltaEvent struct {
	Snapshot WireSnapshot
	Ensemble string
}

func (SnapshotDeltaEvent) Kind() Kind { return KindSnapshotUpdate }

// FullSnapshotEvent is `ee.snapshot` received from ERT.
type FullSnapshotEvent struct {
	Snapshot WireSnapshot
	Ensemble string
}

func (FullSnapshotEvent) Kind() Kind { return KindFullSnapshot }

// UserCancel is the decoded `ee.user_cancel` client control message.
type UserCancel struct {
	Monitor *string
	Time    time.Time
}

func (UserCancel) Kind() Kind { return KindUserCancel }

// UserDone is the decoded `ee.user_done` client control message.
type UserDone struct {
	Monitor *string
	Time    time.Time
}

func (UserDone) Kind() Kind { return KindUserDone }

// envelope peeks the discriminator without committing to a concrete
// payload shape.
type envelope struct {
	EventType string `json:"event_type"`
}

// rawFMStep mirrors the wire field names (std_out/std_err, no
// "status" — status is derived from event_type, per §4.5) for a
// forward-model-step event.
type rawFMStep struct {
	EventType         string    `json:"event_type"`
	Time              time.Time `json:"time"`
	FMStep            string    `json:"fm_step"`
	Real              string    `json:"real"`
	Ensemble          *string   `json:"ensemble,omitempty"`
	Stdout            *string   `json:"std_out,omitempty"`
	Stderr            *string   `json:"std_err,omitempty"`
	CurrentMemoryUsed *int64    `json:"current_memory_usage,omitempty"`
	MaxMemoryUsed     *int64    `json:"max_memory_usage,omitempty"`
	CPUSeconds        *float64  `json:"cpu_seconds,omitempty"`
	Error             *string   `json:"error,omitempty"`
	ErrorMsg          *string   `json:"error_msg,omitempty"`
	ExitCode          *int      `json:"exit_code,omitempty"`
}

type rawEnsemble struct {
	EventType string    `json:"event_type"`
	Ensemble  string    `json:"ensemble"`
	Time      time.Time `json:"time"`
}

type rawRealization struct {
	EventType      string    `json:"event_type"`
	Time           time.Time `json:"time"`
	Real           string    `json:"real"`
	Ensemble       *string   `json:"ensemble,omitempty"`
	QueueEventType *string   `json:"queue_event_type,omitempty"`
	ExecHosts      *string   `json:"exec_hosts,omitempty"`
	Message        *string   `json:"message,omitempty"`
}

type rawSnapshotEnvelope struct {
	EventType string       `json:"event_type"`
	Snapshot  WireSnapshot `json:"snapshot"`
	Ensemble  string       `json:"ensemble"`
}

type rawClientEvent struct {
	EventType string    `json:"event_type"`
	Monitor   *string   `json:"monitor,omitempty"`
	Time      time.Time `json:"time"`
}

// Decode inspects the event_type discriminator and unmarshals payload
// into the matching concrete Event. An unknown event_type or
// malformed JSON is a decode error; callers must log and drop the
// frame rather than propagate it (§7).
func Decode(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch env.EventType {
	case TypeFMStepStart, TypeFMStepRunning, TypeFMStepSuccess, TypeFMStepFailure:
		var raw rawFMStep
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		err := raw.Error
		if err == nil {
			err = raw.ErrorMsg
		}
		return FMStepEvent{
			EventType:         raw.EventType,
			Time:              raw.Time,
			FMStep:            raw.FMStep,
			Real:              raw.Real,
			Ensemble:          raw.Ensemble,
			Stdout:            raw.Stdout,
			Stderr:            raw.Stderr,
			CurrentMemoryUsed: raw.CurrentMemoryUsed,
			MaxMemoryUsed:     raw.MaxMemoryUsed,
			CPUSeconds:        raw.CPUSeconds,
			Error:             err,
		}, nil

	case TypeFMStepChecksum:
		var ev ChecksumEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return ev, nil

	case TypeEnsembleStarted, TypeEnsembleFailed, TypeEnsembleSucceeded, TypeEnsembleCancelled:
		var raw rawEnsemble
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return EnsembleEvent{EventType: raw.EventType, EnsembleID: raw.Ensemble, Time: raw.Time}, nil

	case TypeRealizationWaiting, TypeRealizationPending, TypeRealizationRunning,
		TypeRealizationSuccess, TypeRealizationFailure, TypeRealizationUnknown, TypeRealizationTimeout:
		var raw rawRealization
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return RealizationEvent{
			EventType:      raw.EventType,
			Real:           raw.Real,
			Time:           raw.Time,
			Ensemble:       raw.Ensemble,
			QueueEventType: raw.QueueEventType,
			ExecHosts:      raw.ExecHosts,
			Message:        raw.Message,
		}, nil

	case TypeEESnapshotUpdate:
		var raw rawSnapshotEnvelope
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return SnapshotDeltaEvent{Snapshot: raw.Snapshot, Ensemble: raw.Ensemble}, nil

	case TypeEESnapshot:
		var raw rawSnapshotEnvelope
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return FullSnapshotEvent{Snapshot: raw.Snapshot, Ensemble: raw.Ensemble}, nil

	case TypeEEUserCancel:
		var raw rawClientEvent
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return UserCancel{Monitor: raw.Monitor, Time: raw.Time}, nil

	case TypeEEUserDone:
		var raw rawClientEvent
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		return UserDone{Monitor: raw.Monitor, Time: raw.Time}, nil

	default:
		return nil, fmt.Errorf("unknown event_type %q", env.EventType)
	}
}

// DerivedStatus maps an FMStepEvent's event_type to its snapshot
// status, per §4.5: start -> Pending (queued to run), running ->
// Running, success -> Finished, failure -> Failed.
func (e FMStepEvent) DerivedStatus() string {
	switch e.EventType {
	case TypeFMStepStart:
		return "Pending"
	case TypeFMStepRunning:
		return "Running"
	case TypeFMStepSuccess:
		return "Finished"
	case TypeFMStepFailure:
		return "Failed"
	default:
		return ""
	}
}

// DerivedStatus maps a RealizationEvent's event_type to its
// snapshot status.
func (e RealizationEvent) DerivedStatus() string {
	switch e.EventType {
	case TypeRealizationWaiting:
		return "Waiting"
	case TypeRealizationPending:
		return "Pending"
	case TypeRealizationRunning:
		return "Running"
	case TypeRealizationSuccess:
		return "Finished"
	case TypeRealizationFailure:
		return "Failed"
	case TypeRealizationUnknown:
		return "Unknown"
	case TypeRealizationTimeout:
		return "Timeout"
	default:
		return ""
	}
}

// DerivedState maps an EnsembleEvent's event_type to its
// snapshot ensemble_state.
func (e EnsembleEvent) DerivedState() string {
	switch e.EventType {
	case TypeEnsembleStarted:
		return "Started"
	case TypeEnsembleSucceeded:
		return "Succeeded"
	case TypeEnsembleFailed:
		return "Failed"
	case TypeEnsembleCancelled:
		return "Cancelled"
	default:
		return ""
	}
}
