package snapshot

import (
	"time"

	"github.com/equinor/faster-ee/internal/events"
)

func ptr[T any](v T) *T { return &v }

// UpdateFromEvents derives a delta snapshot from a batch of events,
// given the current main snapshot as source for cascades that must
// be computed deterministically regardless of event order within the
// batch (§4.5 "update_snapshot"). main is read-only; the returned
// delta is fresh and owned by the caller.
func UpdateFromEvents(main *EnsembleSnapshot, evts []events.Event) *EnsembleSnapshot {
	delta := New()
	for _, evt := range evts {
		applyEvent(delta, main, evt)
	}
	return delta
}

func applyEvent(delta, main *EnsembleSnapshot, evt events.Event) {
	switch e := evt.(type) {
	case events.FMStepEvent:
		applyFMStepEvent(delta, e)
	case events.RealizationEvent:
		applyRealizationEvent(delta, main, e)
	case events.EnsembleEvent:
		state := EnsembleState(e.DerivedState())
		delta.State = &state
	case events.SnapshotDeltaEvent:
		Merge(delta, FromWire(e.Snapshot))
	case events.FullSnapshotEvent:
		Merge(delta, FromWire(e.Snapshot))
	}
}

func applyFMStepEvent(delta *EnsembleSnapshot, e events.FMStepEvent) {
	step := &FMStepSnapshot{
		Status: statusPtr(e.DerivedStatus()),
		Index:  ptr(e.FMStep),
	}
	switch e.EventType {
	case events.TypeFMStepStart:
		step.StartTime = ptr(e.Time)
		step.Stdout = e.Stdout
		step.Stderr = e.Stderr
	case events.TypeFMStepRunning:
		step.CurrentMemoryUsed = e.CurrentMemoryUsed
		step.MaxMemoryUsed = e.MaxMemoryUsed
		step.CPUSeconds = e.CPUSeconds
	case events.TypeFMStepSuccess:
		step.EndTime = ptr(e.Time)
	case events.TypeFMStepFailure:
		step.EndTime = ptr(e.Time)
		step.Error = e.Error
	}

	key := FMKey{Real: e.Real, Step: e.FMStep}
	if existing, ok := delta.FmSteps[key]; ok {
		MergeFMStep(existing, step)
	} else {
		delta.FmSteps[key] = step
	}
}

func applyRealizationEvent(delta, main *EnsembleSnapshot, e events.RealizationEvent) {
	real := &RealizationSnapshot{Status: realStatusPtr(e.DerivedStatus())}
	switch e.EventType {
	case events.TypeRealizationWaiting:
		real.ExecHosts = e.ExecHosts
	case events.TypeRealizationRunning:
		real.StartTime = ptr(e.Time)
	case events.TypeRealizationFailure:
		real.EndTime = ptr(e.Time)
		real.Message = e.Message
	case events.TypeRealizationSuccess:
		real.EndTime = ptr(e.Time)
		real.ExecHosts = e.ExecHosts
	case events.TypeRealizationTimeout:
		real.EndTime = ptr(e.Time)
		real.ExecHosts = e.ExecHosts
	}

	if existing, ok := delta.Realizations[e.Real]; ok {
		MergeRealization(existing, real)
	} else {
		delta.Realizations[e.Real] = real
	}

	if e.EventType == events.TypeRealizationTimeout {
		cascadeTimeout(delta, main, e.Real, real.EndTime)
	}
}

// cascadeTimeout implements the timeout cascade: every fm-step
// previously observed in main's flat index for this realization whose
// status is neither Failed nor Finished is marked Failed in the delta
// with the MAX_RUNTIME error, timestamped with the realization's
// end_time.
// This reads from main (the source), never from delta-under-mutation,
// so the result is independent of event ordering within the batch.
func cascadeTimeout(delta, main *EnsembleSnapshot, real string, endTime *time.Time) {
	for key, sourceStep := range main.FmSteps {
		if key.Real != real {
			continue
		}
		if sourceStep.Status != nil && (*sourceStep.Status == FMFailed || *sourceStep.Status == FMFinished) {
			continue
		}
		failed := &FMStepSnapshot{
			Status:  statusPtr(string(FMFailed)),
			EndTime: endTime,
			Error:   ptr(MaxRuntimeError),
		}
		if existing, ok := delta.FmSteps[key]; ok {
			MergeFMStep(existing, failed)
		} else {
			delta.FmSteps[key] = failed
		}
	}
}

func statusPtr(s string) *FMStatus {
	if s == "" {
		return nil
	}
	st := FMStatus(s)
	return &st
}

func realStatusPtr(s string) *RealStatus {
	if s == "" {
		return nil
	}
	st := RealStatus(s)
	return &st
}

// FromWire converts a wire snapshot envelope (as carried by
// ee.snapshot / ee.snapshot_update) into an EnsembleSnapshot whose
// flat fm_steps index is populated from every realization's nested
// fm_steps, so it can be merged via the canonical Merge rule.
func FromWire(ws events.WireSnapshot) *EnsembleSnapshot {
	s := New()
	if ws.Status != nil {
		st := EnsembleState(*ws.Status)
		s.State = &st
	}
	for realID, wr := range ws.Reals {
		real := &RealizationSnapshot{
			Active:    wr.Active,
			StartTime: wr.StartTime,
			EndTime:   wr.EndTime,
			ExecHosts: wr.ExecHosts,
			Message:   wr.Message,
			FmSteps:   make(map[string]*FMStepSnapshot),
		}
		if wr.Status != nil {
			st := RealStatus(*wr.Status)
			real.Status = &st
		}
		for stepID, wf := range wr.FmSteps {
			step := wireToFMStep(wf)
			real.FmSteps[stepID] = step
			s.FmSteps[FMKey{Real: realID, Step: stepID}] = step.Clone()
		}
		s.Realizations[realID] = real
	}
	return s
}

func wireToFMStep(wf events.WireFMStep) *FMStepSnapshot {
	step := &FMStepSnapshot{
		StartTime:         wf.StartTime,
		EndTime:           wf.EndTime,
		Index:             wf.Index,
		CPUSeconds:        wf.CPUSeconds,
		CurrentMemoryUsed: wf.CurrentMemoryUsed,
		MaxMemoryUsed:     wf.MaxMemoryUsed,
		Name:              wf.Name,
		Error:             wf.Error,
		Stdout:            wf.Stdout,
		Stderr:            wf.Stderr,
	}
	if wf.Status != nil {
		st := FMStatus(*wf.Status)
		step.Status = &st
	}
	return step
}

// ToWire converts a (typically already-Synced) snapshot into the wire
// envelope shape for outbound encoding.
func ToWire(s *EnsembleSnapshot) events.WireSnapshot {
	ws := events.WireSnapshot{Reals: make(map[string]events.WireRealization, len(s.Realizations))}
	if s.State != nil {
		st := string(*s.State)
		ws.Status = &st
	}
	for realID, r := range s.Realizations {
		wr := events.WireRealization{
			Active:    r.Active,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			ExecHosts: r.ExecHosts,
			Message:   r.Message,
		}
		if r.Status != nil {
			st := string(*r.Status)
			wr.Status = &st
		}
		if len(r.FmSteps) > 0 {
			wr.FmSteps = make(map[string]events.WireFMStep, len(r.FmSteps))
			for stepID, f := range r.FmSteps {
				wr.FmSteps[stepID] = fmStepToWire(f)
			}
		}
		ws.Reals[realID] = wr
	}
	return ws
}

func fmStepToWire(f *FMStepSnapshot) events.WireFMStep {
	wf := events.WireFMStep{
		StartTime:         f.StartTime,
		EndTime:           f.EndTime,
		Index:             f.Index,
		CPUSeconds:        f.CPUSeconds,
		CurrentMemoryUsed: f.CurrentMemoryUsed,
		MaxMemoryUsed:     f.MaxMemoryUsed,
		Name:              f.Name,
		Error:             f.Error,
		Stdout:            f.Stdout,
		Stderr:            f.Stderr,
	}
	if f.Status != nil {
		st := string(*f.Status)
		wf.Status = &st
	}
	return wf
}
