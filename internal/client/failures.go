package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/workout"
	_ "modernc.org/sqlite"
)

// FailedSet is a set write that never reached the server.
type FailedSet struct {
	ID       int64
	Set      workout.SetInput
	Error    string
	FailedAt time.Time
}

// FailureLog keeps failed set writes in a local SQLite database so they can
// be shown to the user and replayed. Only the latest failure per set is kept.
type FailureLog struct {
	db *sql.DB
}

// OpenFailureLog opens (or creates) the SQLite database at dir/failures.db.
func OpenFailureLog(dir string) (*FailureLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "failures.db"))
	if err != nil {
		return nil, fmt.Errorf("opening failure log: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS failed_sets (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		order_index   INTEGER NOT NULL,
		exercise_id   TEXT NOT NULL,
		exercise_name TEXT NOT NULL,
		set_number    INTEGER NOT NULL,
		reps          INTEGER NOT NULL,
		weight        REAL NOT NULL,
		error         TEXT NOT NULL,
		failed_at     TIMESTAMP NOT NULL,
		UNIQUE (session_id, order_index, set_number)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating failure table: %w", err)
	}

	return &FailureLog{db: db}, nil
}

// Record stores a failed write, replacing an older failure of the same set.
func (f *FailureLog) Record(ctx context.Context, in workout.SetInput, cause error) error {
	_, err := f.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO failed_sets
		 (session_id, order_index, exercise_id, exercise_name, set_number, reps, weight, error, failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SessionID.String(), in.OrderIndex, in.ExerciseID, in.ExerciseName,
		in.SetNumber, in.Reps, in.Weight, cause.Error(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording failed set: %w", err)
	}
	return nil
}

// Clear drops the failure of a set once a later write of it succeeded.
func (f *FailureLog) Clear(ctx context.Context, in workout.SetInput) error {
	_, err := f.db.ExecContext(ctx,
		`DELETE FROM failed_sets WHERE session_id = ? AND order_index = ? AND set_number = ?`,
		in.SessionID.String(), in.OrderIndex, in.SetNumber)
	if err != nil {
		return fmt.Errorf("clearing failed set: %w", err)
	}
	return nil
}

// List returns every recorded failure, oldest first.
func (f *FailureLog) List(ctx context.Context) ([]FailedSet, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT id, session_id, order_index, exercise_id, exercise_name, set_number, reps, weight, error, failed_at
		 FROM failed_sets ORDER BY failed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing failed sets: %w", err)
	}
	defer rows.Close()

	var result []FailedSet
	for rows.Next() {
		var (
			fs        FailedSet
			sessionID string
		)
		if err := rows.Scan(&fs.ID, &sessionID, &fs.Set.OrderIndex, &fs.Set.ExerciseID, &fs.Set.ExerciseName,
			&fs.Set.SetNumber, &fs.Set.Reps, &fs.Set.Weight, &fs.Error, &fs.FailedAt); err != nil {
			return nil, fmt.Errorf("scanning failed set: %w", err)
		}
		if fs.Set.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", sessionID, err)
		}
		result = append(result, fs)
	}
	return result, rows.Err()
}

// Close closes the failure log.
func (f *FailureLog) Close() error {
	return f.db.Close()
}
