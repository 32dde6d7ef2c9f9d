package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/workout"
)

const sessionColumns = `id, user_id, program_id, day_id, program_instance_id, started_at, completed_at,
	 status, last_paused_at, accumulated_pause_seconds, duration_seconds, rating,
	 program_name, day_title, plan_slots`

// FindSessionID returns the session for the exact start tuple. A NULL
// instance only matches a NULL instance.
func (s queries) FindSessionID(ctx context.Context, key workout.StartKey) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.q.QueryRow(ctx,
		`SELECT id FROM workout_sessions
		 WHERE user_id = $1 AND program_id = $2 AND day_id = $3
		   AND program_instance_id IS NOT DISTINCT FROM $4
		 ORDER BY started_at DESC
		 LIMIT 1`,
		key.UserID, key.ProgramID, key.DayID, key.ProgramInstanceID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("finding session: %w", notFound(err))
	}
	return id, nil
}

// InsertSession creates a session row. Returns workout.ErrConflict when the
// start tuple already has a session.
func (s queries) InsertSession(ctx context.Context, sess *models.Session) error {
	slots, err := json.Marshal(sess.Plan.Slots)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	tag, err := s.q.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, program_id, day_id, program_instance_id, started_at,
		 status, accumulated_pause_seconds, program_name, day_title, plan_slots)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT DO NOTHING`,
		sess.ID, sess.UserID, sess.ProgramID, sess.DayID, sess.ProgramInstanceID, sess.StartedAt,
		string(sess.Status), sess.AccumulatedPauseSeconds, sess.Plan.ProgramName, sess.Plan.DayTitle, slots)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrConflict
	}
	return nil
}

// GetSession reads a session owned by userID.
func (s queries) GetSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		id, userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// LockSession reads a session owned by userID and locks its row until the
// transaction ends.
func (s queries) LockSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	return sess, nil
}

// UpdateSessionState writes the lifecycle columns. The plan snapshot is
// left alone.
func (s queries) UpdateSessionState(ctx context.Context, sess *models.Session) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE workout_sessions SET
		 started_at = $2, completed_at = $3, status = $4, last_paused_at = $5,
		 accumulated_pause_seconds = $6, duration_seconds = $7, rating = $8
		 WHERE id = $1`,
		sess.ID, sess.StartedAt, sess.CompletedAt, string(sess.Status), sess.LastPausedAt,
		sess.AccumulatedPauseSeconds, sess.DurationSeconds, sess.Rating)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating session: %w", workout.ErrNotFound)
	}
	return nil
}

// UpdateSessionPlan replaces the plan snapshot.
func (s queries) UpdateSessionPlan(ctx context.Context, id uuid.UUID, plan models.Plan) error {
	slots, err := json.Marshal(plan.Slots)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE workout_sessions SET program_name = $2, day_title = $3, plan_slots = $4 WHERE id = $1`,
		id, plan.ProgramName, plan.DayTitle, slots)
	if err != nil {
		return fmt.Errorf("updating session plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating session plan: %w", workout.ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session owned by userID. Performances and set
// records go with it through ON DELETE CASCADE.
func (s queries) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM workout_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting session: %w", workout.ErrNotFound)
	}
	return nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		sess        models.Session
		status      string
		programName *string
		dayTitle    *string
		slots       []byte
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.ProgramID, &sess.DayID, &sess.ProgramInstanceID,
		&sess.StartedAt, &sess.CompletedAt, &status, &sess.LastPausedAt, &sess.AccumulatedPauseSeconds,
		&sess.DurationSeconds, &sess.Rating, &programName, &dayTitle, &slots)
	if err != nil {
		return nil, notFound(err)
	}
	sess.Status = models.Status(status)
	if programName != nil {
		sess.Plan.ProgramName = *programName
	}
	if dayTitle != nil {
		sess.Plan.DayTitle = *dayTitle
	}
	if slots != nil {
		if err := json.Unmarshal(slots, &sess.Plan.Slots); err != nil {
			return nil, fmt.Errorf("decoding plan: %w", err)
		}
	}
	return &sess, nil
}
