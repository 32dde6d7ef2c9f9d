package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's logged training.
type DataStats struct {
	TotalSessions     int64         `json:"total_sessions"`
	CompletedSessions int64         `json:"completed_sessions"`
	TotalSets         int64         `json:"total_sets"`
	TonnageKg         float64       `json:"tonnage_kg"`
	EarliestSession   *time.Time    `json:"earliest_session"`
	LatestSession     *time.Time    `json:"latest_session"`
	SessionsByProgram []ProgramStat `json:"sessions_by_program"`
}

// ProgramStat holds summary stats for a single program.
type ProgramStat struct {
	ProgramID     string   `json:"program_id"`
	ProgramName   string   `json:"program_name"`
	Completed     int64    `json:"completed"`
	TotalDuration float64  `json:"total_duration_sec"`
	AvgRating     *float64 `json:"avg_rating,omitempty"`
}

// GetDataStats returns aggregate statistics for a user's sessions.
func (db *DB) GetDataStats(ctx context.Context, userID string) (*DataStats, error) {
	stats := &DataStats{}

	// Session counts and date range
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed'), MIN(started_at), MAX(started_at)
		 FROM workout_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.CompletedSessions, &stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	// Sets and tonnage
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(sr.weight * sr.reps), 0)::float8
		 FROM set_records sr
		 JOIN exercise_performances ep ON ep.id = sr.performance_id
		 JOIN workout_sessions s ON s.id = ep.session_id
		 WHERE s.user_id = $1`, userID,
	).Scan(&stats.TotalSets, &stats.TonnageKg)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	// Completed sessions by program
	rows, err := db.Pool.Query(ctx,
		`SELECT program_id, COALESCE(MAX(program_name), ''), COUNT(*),
		        COALESCE(SUM(duration_seconds), 0)::float8, AVG(rating)::float8
		 FROM workout_sessions
		 WHERE user_id = $1 AND status = 'completed'
		 GROUP BY program_id
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by program: %w", err)
	}
	defer rows.Close()

	stats.SessionsByProgram = []ProgramStat{}
	for rows.Next() {
		var s ProgramStat
		if err := rows.Scan(&s.ProgramID, &s.ProgramName, &s.Completed, &s.TotalDuration, &s.AvgRating); err != nil {
			return nil, fmt.Errorf("scanning program stat: %w", err)
		}
		stats.SessionsByProgram = append(stats.SessionsByProgram, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
