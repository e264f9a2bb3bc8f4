// Package snapshot implements the EnsembleSnapshot data model: the
// merge-able, field-wise-updated view of an ensemble's realizations
// and forward-model steps that the evaluator folds dispatcher/ERT
// events into and republishes as deltas.
package snapshot

import "time"

// FMStatus is the lifecycle state of a single forward-model step.
type FMStatus string

const (
	FMPending  FMStatus = "Pending"
	FMRunning  FMStatus = "Running"
	FMFinished FMStatus = "Finished"
	FMFailed   FMStatus = "Failed"
)

// RealStatus is the lifecycle state of a realization.
type RealStatus string

const (
	RealWaiting  RealStatus = "Waiting"
	RealPending  RealStatus = "Pending"
	RealRunning  RealStatus = "Running"
	RealFinished RealStatus = "Finished"
	RealFailed   RealStatus = "Failed"
	RealUnknown  RealStatus = "Unknown"
	RealTimeout  RealStatus = "Timeout"
)

// EnsembleState is the lifecycle state of the ensemble as a whole.
type EnsembleState string

const (
	EnsembleStarted   EnsembleState = "Started"
	EnsembleSucceeded EnsembleState = "Succeeded"
	EnsembleFailed    EnsembleState = "Failed"
	EnsembleCancelled EnsembleState = "Cancelled"
	EnsembleUnknown   EnsembleState = "Unknown"
)

// MaxRuntimeError is the error string written into the synthetic
// FMStepSnapshot entries produced by the realization-timeout cascade.
const MaxRuntimeError = "The run is cancelled due to reaching MAX_RUNTIME"

// FMStepSnapshot is the leaf of the snapshot tree: the observed state
// of one forward-model step within one realization. All fields are
// nullable except where the zero value is itself meaningful.
type FMStepSnapshot struct {
	Status            *FMStatus  `json:"status"`
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

// Clone returns a deep copy so callers can mutate the result without
// aliasing snapshot state guarded by the reducer's locks.
func (f *FMStepSnapshot) Clone() *FMStepSnapshot {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// FMKey identifies one forward-model step within the flat index.
type FMKey struct {
	Real string
	Step string
}

// RealizationSnapshot is the observed state of one realization,
// including the owned copy of its forward-model steps used for full
// snapshot serialization.
type RealizationSnapshot struct {
	Status    *RealStatus                `json:"status"`
	Active    *bool                      `json:"active,omitempty"`
	StartTime *time.Time                 `json:"start_time,omitempty"`
	EndTime   *time.Time                 `json:"end_time,omitempty"`
	ExecHosts *string                    `json:"exec_hosts,omitempty"`
	Message   *string                    `json:"message,omitempty"`
	FmSteps   map[string]*FMStepSnapshot `json:"fm_steps,omitempty"`
}

func newRealizationSnapshot() *RealizationSnapshot {
	return &RealizationSnapshot{FmSteps: make(map[string]*FMStepSnapshot)}
}

// Clone returns a deep copy of the realization, including its nested
// fm_steps map.
func (r *RealizationSnapshot) Clone() *RealizationSnapshot {
	if r == nil {
		return nil
	}
	c := *r
	if r.FmSteps != nil {
		c.FmSteps = make(map[string]*FMStepSnapshot, len(r.FmSteps))
		for k, v := range r.FmSteps {
			c.FmSteps[k] = v.Clone()
		}
	}
	return &c
}

// EnsembleSnapshot is the broker's consolidated view of one ensemble.
// Realizations holds the full per-realization state (including
// nested fm_steps, the canonical form for serialization). FmSteps is
// the flat (real, fm-step) index used as the authoritative working
// set during reduce; it is kept separate from Realizations[x].FmSteps,
// which Sync fills on the copies it returns for emission (see §4.5
// step 3) and FromWire fills from wire snapshots (which Merge then
// carries into the target).
type EnsembleSnapshot struct {
	Realizations map[string]*RealizationSnapshot `json:"-"`
	FmSteps      map[FMKey]*FMStepSnapshot        `json:"-"`
	State        *EnsembleState                   `json:"-"`
}

// New returns an empty snapshot ready for merging.
func New() *EnsembleSnapshot {
	return &EnsembleSnapshot{
		Realizations: make(map[string]*RealizationSnapshot),
		FmSteps:      make(map[FMKey]*FMStepSnapshot),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *EnsembleSnapshot) Clone() *EnsembleSnapshot {
	c := New()
	if s.State != nil {
		st := *s.State
		c.State = &st
	}
	for id, r := range s.Realizations {
		c.Realizations[id] = r.Clone()
	}
	for k, f := range s.FmSteps {
		c.FmSteps[k] = f.Clone()
	}
	return c
}

// realization returns the realization node for id, creating it if
// absent. Used both by merge (insert-or-update) and by Sync.
func (s *EnsembleSnapshot) realization(id string) *RealizationSnapshot {
	r, ok := s.Realizations[id]
	if !ok {
		r = newRealizationSnapshot()
		s.Realizations[id] = r
	}
	if r.FmSteps == nil {
		r.FmSteps = make(map[string]*FMStepSnapshot)
	}
	return r
}

// Sync returns a clone of s in which every entry of the flat FmSteps
// index is reflected into its realization's nested FmSteps map,
// creating realization nodes as needed. This is the "canonical form
// for full snapshots" pass from §4.5 step 3; it never mutates s
// itself — the flat index stays authoritative on the live snapshot.
func (s *EnsembleSnapshot) Sync() *EnsembleSnapshot {
	c := s.Clone()
	for key, step := range c.FmSteps {
		r := c.realization(key.Real)
		r.FmSteps[key.Step] = step.Clone()
	}
	return c
}
