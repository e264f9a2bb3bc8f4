// Package state holds the broker's cross-worker shared state behind
// a single reader-writer lock: the main snapshot, the captured
// ensemble id, and the ensemble's lifecycle status (§5). Readers
// (admin HTTP, CONNECT's full-snapshot trigger) may run concurrently;
// the reducer writes the snapshot and status, and both the reducer
// and the listener's ingest step write the ensemble id.
package state

import (
	"sync"

	"github.com/equinor/faster-ee/internal/snapshot"
)

// State is safe for concurrent use.
type State struct {
	mu         sync.RWMutex
	main       *snapshot.EnsembleSnapshot
	ensembleID string
	status     snapshot.EnsembleState
}

// New returns a State with an empty main snapshot and Unknown status.
func New() *State {
	return &State{
		main:   snapshot.New(),
		status: snapshot.EnsembleUnknown,
	}
}

// EnsembleID returns the most recently captured ensemble id.
func (s *State) EnsembleID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensembleID
}

// SetEnsembleID records id, replacing whatever was captured before.
func (s *State) SetEnsembleID(id string) {
	s.mu.Lock()
	s.ensembleID = id
	s.mu.Unlock()
}

// Status returns the ensemble's current lifecycle state.
func (s *State) Status() snapshot.EnsembleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus transitions the ensemble's lifecycle state.
func (s *State) SetStatus(status snapshot.EnsembleState) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Main returns a deep clone of the current main snapshot, safe for
// the caller to read or mutate without affecting live state.
func (s *State) Main() *snapshot.EnsembleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.main.Clone()
}

// Merge merges delta into the live main snapshot under the write
// lock and returns a clone of main afterward, for callers (the
// reducer) that must emit the post-merge state.
func (s *State) Merge(delta *snapshot.EnsembleSnapshot) *snapshot.EnsembleSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.Merge(s.main, delta)
	return s.main.Clone()
}

// WithMainRLock runs fn with a reference to the live main snapshot
// held under the read lock, for call sites (the timeout cascade's
// source lookup) that must observe a single atomic view without the
// cost of a full clone.
func (s *State) WithMainRLock(fn func(main *snapshot.EnsembleSnapshot)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.main)
}
