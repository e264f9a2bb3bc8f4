package snapshot

import (
	"testing"
	"time"

	"github.com/equinor/faster-ee/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIdentityOnEmpty(t *testing.T) {
	s := New()
	status := FMFinished
	s.FmSteps[FMKey{Real: "0", Step: "0"}] = &FMStepSnapshot{Status: &status, Index: ptr("0")}
	realStatus := RealFinished
	s.Realizations["0"] = &RealizationSnapshot{Status: &realStatus, FmSteps: map[string]*FMStepSnapshot{}}

	before := s.Clone()

	Merge(s, New())
	assert.Equal(t, before, s, "merging the empty snapshot onto s must be the identity")

	other := s.Clone()
	Merge(other, before)
	assert.Equal(t, before.Realizations["0"].Status, other.Realizations["0"].Status)
}

func TestMergeIdempotent(t *testing.T) {
	main := New()
	delta := New()
	running := FMRunning
	delta.FmSteps[FMKey{Real: "0", Step: "0"}] = &FMStepSnapshot{
		Status:            &running,
		CurrentMemoryUsed: ptr(int64(1024)),
	}

	Merge(main, delta)
	first := main.Clone()
	Merge(main, delta)

	assert.Equal(t, first.FmSteps, main.FmSteps)
}

func TestScenarioFMStartThenSuccess(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Second)

	main := New()
	delta1 := UpdateFromEvents(main, []events.Event{
		events.FMStepEvent{EventType: events.TypeFMStepStart, Real: "0", FMStep: "0", Time: t0},
	})
	Merge(main, delta1)

	delta2 := UpdateFromEvents(main, []events.Event{
		events.FMStepEvent{EventType: events.TypeFMStepSuccess, Real: "0", FMStep: "0", Time: t1},
	})
	Merge(main, delta2)

	step := main.FmSteps[FMKey{Real: "0", Step: "0"}]
	require.NotNil(t, step)
	require.NotNil(t, step.Status)
	assert.Equal(t, FMFinished, *step.Status)
	require.NotNil(t, step.StartTime)
	assert.True(t, step.StartTime.Equal(t0))
	require.NotNil(t, step.EndTime)
	assert.True(t, step.EndTime.Equal(t1))
	require.NotNil(t, step.Index)
	assert.Equal(t, "0", *step.Index)

	synced := main.Sync()
	got := synced.Realizations["0"].FmSteps["0"]
	require.NotNil(t, got)
	assert.Equal(t, FMFinished, *got.Status)
}

func TestScenarioTimeoutCascade(t *testing.T) {
	main := New()
	running := FMRunning
	finished := FMFinished
	main.FmSteps[FMKey{Real: "1", Step: "0"}] = &FMStepSnapshot{Status: &running}
	main.FmSteps[FMKey{Real: "1", Step: "1"}] = &FMStepSnapshot{Status: &finished}

	tEnd := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	delta := UpdateFromEvents(main, []events.Event{
		events.RealizationEvent{EventType: events.TypeRealizationTimeout, Real: "1", Time: tEnd},
	})

	step0 := delta.FmSteps[FMKey{Real: "1", Step: "0"}]
	require.NotNil(t, step0)
	assert.Equal(t, FMFailed, *step0.Status)
	assert.Equal(t, MaxRuntimeError, *step0.Error)
	require.NotNil(t, step0.EndTime)
	assert.True(t, step0.EndTime.Equal(tEnd))

	_, ok := delta.FmSteps[FMKey{Real: "1", Step: "1"}]
	assert.False(t, ok, "a step already Finished must not be overwritten by the cascade")

	real := delta.Realizations["1"]
	require.NotNil(t, real)
	require.NotNil(t, real.Status)
	assert.Equal(t, RealTimeout, *real.Status)
}

func TestChecksumNeverReachesSnapshot(t *testing.T) {
	// ChecksumEvent is not handled by applyEvent; feeding one through
	// UpdateFromEvents must be a no-op on the resulting delta.
	main := New()
	delta := UpdateFromEvents(main, []events.Event{
		events.ChecksumEvent{Real: "0", Checksums: map[string]events.ChecksumSet{}},
	})
	assert.Empty(t, delta.FmSteps)
	assert.Empty(t, delta.Realizations)
	assert.Nil(t, delta.State)
}

func TestWireRoundTrip(t *testing.T) {
	main := New()
	status := FMFinished
	main.FmSteps[FMKey{Real: "0", Step: "0"}] = &FMStepSnapshot{Status: &status, Index: ptr("0")}
	realStatus := RealFinished
	main.Realizations["0"] = &RealizationSnapshot{Status: &realStatus, FmSteps: map[string]*FMStepSnapshot{}}
	state := EnsembleSucceeded
	main.State = &state

	synced := main.Sync()
	wire := ToWire(synced)
	back := FromWire(wire)

	assert.Equal(t, *synced.State, *back.State)
	assert.Equal(t, *synced.Realizations["0"].Status, *back.Realizations["0"].Status)
}
