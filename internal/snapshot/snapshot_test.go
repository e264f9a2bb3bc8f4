package snapshot

import (
	"testing"
	"time"
)

func TestNewIsEmptyAndReady(t *testing.T) {
	s := New()
	if s.State != nil {
		t.Errorf("State = %v, want nil", s.State)
	}
	if len(s.Realizations) != 0 || len(s.FmSteps) != 0 {
		t.Error("New() should have no realizations or fm_steps")
	}
}

func TestFMStepSnapshotCloneIsIndependent(t *testing.T) {
	status := FMRunning
	orig := &FMStepSnapshot{Status: &status, Index: ptr("0")}
	clone := orig.Clone()

	mutated := FMFailed
	clone.Status = &mutated

	if *orig.Status != FMRunning {
		t.Error("mutating clone's Status leaked into original")
	}
}

func TestFMStepSnapshotCloneOfNilIsNil(t *testing.T) {
	var f *FMStepSnapshot
	if f.Clone() != nil {
		t.Error("Clone() of nil receiver should return nil")
	}
}

func TestRealizationSnapshotCloneDeepCopiesFmSteps(t *testing.T) {
	status := FMRunning
	r := &RealizationSnapshot{
		FmSteps: map[string]*FMStepSnapshot{
			"0": {Status: &status},
		},
	}
	clone := r.Clone()

	mutated := FMFailed
	clone.FmSteps["0"].Status = &mutated

	if *r.FmSteps["0"].Status != FMRunning {
		t.Error("mutating clone's nested fm_steps leaked into original")
	}
}

func TestEnsembleSnapshotCloneDeepCopies(t *testing.T) {
	s := New()
	realStatus := RealRunning
	s.Realizations["0"] = &RealizationSnapshot{Status: &realStatus}
	fmStatus := FMRunning
	s.FmSteps[FMKey{Real: "0", Step: "0"}] = &FMStepSnapshot{Status: &fmStatus}
	state := EnsembleStarted
	s.State = &state

	clone := s.Clone()

	mutatedReal := RealFailed
	clone.Realizations["0"].Status = &mutatedReal
	mutatedFM := FMFailed
	clone.FmSteps[FMKey{Real: "0", Step: "0"}].Status = &mutatedFM
	mutatedState := EnsembleFailed
	clone.State = &mutatedState

	if *s.Realizations["0"].Status != RealRunning {
		t.Error("mutating clone's realization leaked into original")
	}
	if *s.FmSteps[FMKey{Real: "0", Step: "0"}].Status != FMRunning {
		t.Error("mutating clone's fm step leaked into original")
	}
	if *s.State != EnsembleStarted {
		t.Error("mutating clone's state leaked into original")
	}
}

func TestSyncReflectsFlatIndexIntoNestedRealizations(t *testing.T) {
	s := New()
	status := FMRunning
	s.FmSteps[FMKey{Real: "1", Step: "2"}] = &FMStepSnapshot{Status: &status, StartTime: ptrTime(time.Unix(0, 0))}

	synced := s.Sync()

	r, ok := synced.Realizations["1"]
	if !ok {
		t.Fatal("Sync() did not create realization node for flat index entry")
	}
	step, ok := r.FmSteps["2"]
	if !ok {
		t.Fatal("Sync() did not reflect fm step into nested map")
	}
	if step.Status == nil || *step.Status != FMRunning {
		t.Errorf("synced nested fm step status = %v, want Running", step.Status)
	}
}

func TestSyncDoesNotMutateOriginal(t *testing.T) {
	s := New()
	status := FMRunning
	s.FmSteps[FMKey{Real: "1", Step: "2"}] = &FMStepSnapshot{Status: &status}

	s.Sync()

	if _, ok := s.Realizations["1"]; ok {
		t.Error("Sync() must not mutate the receiver's Realizations map")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
