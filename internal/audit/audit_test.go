package audit

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/equinor/faster-ee/internal/snapshot"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObserveTerminalRecordsOutcome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	a, err := Open(discardLogger(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	start := time.Now().Add(-time.Hour)
	end := time.Now()
	failedStatus := snapshot.RealFailed
	finishedStatus := snapshot.RealFinished

	main := snapshot.New()
	main.Realizations["0"] = &snapshot.RealizationSnapshot{Status: &failedStatus, StartTime: &start, EndTime: &end}
	main.Realizations["1"] = &snapshot.RealizationSnapshot{Status: &finishedStatus, StartTime: &start, EndTime: &end}

	a.ObserveTerminal("ens-1", snapshot.EnsembleFailed, main)

	row := a.db.QueryRow(`SELECT final_state, realization_count, failed_count FROM ensemble_outcomes WHERE ensemble_id = ?`, "ens-1")
	var finalState string
	var total, failed int
	if err := row.Scan(&finalState, &total, &failed); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if finalState != "Failed" {
		t.Errorf("final_state = %q, want Failed", finalState)
	}
	if total != 2 {
		t.Errorf("realization_count = %d, want 2", total)
	}
	if failed != 1 {
		t.Errorf("failed_count = %d, want 1", failed)
	}
}

func TestNilArchiveObserveTerminalIsNoOp(t *testing.T) {
	var a *Archive
	a.ObserveTerminal("ens-1", snapshot.EnsembleFailed, snapshot.New())
}
