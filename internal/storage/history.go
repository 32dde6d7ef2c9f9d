package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meltforce/liftlog/internal/models"
)

// History returns a user's completed sessions, newest first.
func (db *DB) History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.program_id, s.day_id, COALESCE(s.program_name, ''), COALESCE(s.day_title, ''),
		        s.started_at, s.completed_at, s.duration_seconds, s.rating,
		        (SELECT COUNT(*) FROM exercise_performances ep
		         WHERE ep.session_id = s.id AND jsonb_array_length(ep.sets_snapshot) > 0)::int
		 FROM workout_sessions s
		 WHERE s.user_id = $1 AND s.status = 'completed'
		 ORDER BY s.completed_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	result := []models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.ProgramID, &h.DayID, &h.ProgramName, &h.DayTitle,
			&h.StartedAt, &h.CompletedAt, &h.DurationSeconds, &h.Rating, &h.ExerciseCount); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// ExerciseHistory returns the sets logged for an exercise in a user's
// completed sessions, newest first.
func (db *DB) ExerciseHistory(ctx context.Context, userID, exerciseID string, limit int) ([]models.ExerciseHistoryEntry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.completed_at, ep.sets_snapshot
		 FROM exercise_performances ep
		 JOIN workout_sessions s ON s.id = ep.session_id
		 WHERE s.user_id = $1 AND ep.exercise_id = $2 AND s.status = 'completed'
		   AND jsonb_array_length(ep.sets_snapshot) > 0
		 ORDER BY s.completed_at DESC, ep.order_index
		 LIMIT $3`,
		userID, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exercise history: %w", err)
	}
	defer rows.Close()

	result := []models.ExerciseHistoryEntry{}
	for rows.Next() {
		var (
			e    models.ExerciseHistoryEntry
			sets []byte
		)
		if err := rows.Scan(&e.SessionID, &e.Date, &sets); err != nil {
			return nil, fmt.Errorf("scanning exercise history: %w", err)
		}
		if err := json.Unmarshal(sets, &e.Sets); err != nil {
			return nil, fmt.Errorf("decoding sets snapshot: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LastLifts returns, per exercise id, the last three completed occurrences
// with their sets. Exercises never logged map to an empty list.
func (db *DB) LastLifts(ctx context.Context, userID string, exerciseIDs []string) (map[string][]models.ExerciseHistoryEntry, error) {
	result := make(map[string][]models.ExerciseHistoryEntry, len(exerciseIDs))
	for _, id := range exerciseIDs {
		result[id] = []models.ExerciseHistoryEntry{}
	}
	if len(exerciseIDs) == 0 {
		return result, nil
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, session_id, completed_at, sets_snapshot FROM (
			SELECT ep.exercise_id, s.id AS session_id, s.completed_at, ep.sets_snapshot,
			       ROW_NUMBER() OVER (PARTITION BY ep.exercise_id ORDER BY s.completed_at DESC, ep.order_index) AS rn
			FROM exercise_performances ep
			JOIN workout_sessions s ON s.id = ep.session_id
			WHERE s.user_id = $1 AND ep.exercise_id = ANY($2) AND s.status = 'completed'
			  AND jsonb_array_length(ep.sets_snapshot) > 0
		 ) ranked
		 WHERE rn <= 3
		 ORDER BY exercise_id, completed_at DESC`,
		userID, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("querying last lifts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			exerciseID string
			e          models.ExerciseHistoryEntry
			sets       []byte
		)
		if err := rows.Scan(&exerciseID, &e.SessionID, &e.Date, &sets); err != nil {
			return nil, fmt.Errorf("scanning last lift: %w", err)
		}
		if err := json.Unmarshal(sets, &e.Sets); err != nil {
			return nil, fmt.Errorf("decoding sets snapshot: %w", err)
		}
		result[exerciseID] = append(result[exerciseID], e)
	}
	return result, rows.Err()
}

// CompletedDayIDs returns the days of a program the user has completed at
// least once.
func (db *DB) CompletedDayIDs(ctx context.Context, userID, programID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT DISTINCT day_id FROM workout_sessions
		 WHERE user_id = $1 AND program_id = $2 AND status = 'completed'
		 ORDER BY day_id`,
		userID, programID)
	if err != nil {
		return nil, fmt.Errorf("querying completed days: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning completed day: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// InProgress returns the most recent unfinished session for a program day,
// with the time of its last logged set. Returns workout.ErrNotFound when
// there is none.
func (db *DB) InProgress(ctx context.Context, userID, programID, dayID string) (*models.InProgressSession, error) {
	var (
		s      models.InProgressSession
		status string
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT s.id, s.program_id, s.day_id, s.status, s.started_at,
		        (SELECT MAX(sr.updated_at) FROM set_records sr
		         JOIN exercise_performances ep ON ep.id = sr.performance_id
		         WHERE ep.session_id = s.id)
		 FROM workout_sessions s
		 WHERE s.user_id = $1 AND s.program_id = $2 AND s.day_id = $3 AND s.status <> 'completed'
		 ORDER BY s.started_at DESC
		 LIMIT 1`,
		userID, programID, dayID).Scan(&s.SessionID, &s.ProgramID, &s.DayID, &status, &s.StartedAt, &s.LastSetAt)
	if err != nil {
		return nil, fmt.Errorf("querying in-progress session: %w", notFound(err))
	}
	s.Status = models.Status(status)
	return &s, nil
}
