// Package audit implements a best-effort archive of terminal ensemble
// outcomes, backed by a local sqlite file. It is a supplemental
// record for operators, never the snapshot of record: the reducer's
// in-memory state.State remains authoritative while the broker runs.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/equinor/faster-ee/internal/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS ensemble_outcomes (
	ensemble_id      TEXT NOT NULL,
	final_state      TEXT NOT NULL,
	started_at       DATETIME,
	ended_at         DATETIME NOT NULL,
	realization_count INTEGER NOT NULL,
	failed_count     INTEGER NOT NULL,
	PRIMARY KEY (ensemble_id, ended_at)
);
`

// Archive is a best-effort sink for terminal ensemble outcomes.
// Construction never fails the broker's own startup: Open returns a
// nil *Archive and an error on failure, which the caller logs, and
// every method on a nil *Archive is a no-op.
type Archive struct {
	logger *slog.Logger
	db     *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and
// ensures its schema exists. A non-nil error here is always safe for
// the caller to downgrade to a logged warning and continue without
// an archive.
func Open(logger *slog.Logger, path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate schema: %w", err)
	}
	return &Archive{logger: logger, db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ObserveTerminal implements reduce.TerminalObserver. Failures are
// logged, never propagated: a broken archive must not affect the
// reducer's own control flow.
func (a *Archive) ObserveTerminal(ensembleID string, final snapshot.EnsembleState, main *snapshot.EnsembleSnapshot) {
	if a == nil || a.db == nil {
		return
	}

	started, ended := runSpan(main)
	failed, total := realizationCounts(main)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO ensemble_outcomes (ensemble_id, final_state, started_at, ended_at, realization_count, failed_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ensembleID, string(final), started, ended, total, failed,
	)
	if err != nil {
		a.logger.Warn("failed to archive ensemble outcome", "ensemble_id", ensembleID, "error", err)
	}
}

func runSpan(main *snapshot.EnsembleSnapshot) (started, ended *time.Time) {
	for _, real := range main.Realizations {
		if real.StartTime != nil && (started == nil || real.StartTime.Before(*started)) {
			started = real.StartTime
		}
		if real.EndTime != nil && (ended == nil || real.EndTime.After(*ended)) {
			ended = real.EndTime
		}
	}
	if ended == nil {
		now := time.Now()
		ended = &now
	}
	return started, ended
}

func realizationCounts(main *snapshot.EnsembleSnapshot) (failed, total int) {
	total = len(main.Realizations)
	for _, real := range main.Realizations {
		if real.Status != nil && *real.Status == snapshot.RealFailed {
			failed++
		}
	}
	return failed, total
}
