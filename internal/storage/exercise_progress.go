package storage

import (
	"context"
	"fmt"
	"time"
)

// ExerciseSummary holds aggregated stats for a single exercise.
type ExerciseSummary struct {
	ExerciseID string  `json:"exercise_id"`
	Name       string  `json:"name"`
	TotalSets  int     `json:"total_sets"`
	TotalReps  int     `json:"total_reps"`
	TonnageKg  float64 `json:"tonnage_kg"`
	MaxWeight  float64 `json:"max_weight_kg"`
	BestE1RM   float64 `json:"best_e1rm_kg"`
}

// ExerciseProgression holds one session's data for a specific exercise.
type ExerciseProgression struct {
	Date           string  `json:"date"`
	MaxWeight      float64 `json:"max_weight_kg"`
	SessionTonnage float64 `json:"session_tonnage_kg"`
	Sets           int     `json:"sets"`
	E1RM           float64 `json:"e1rm_kg"`
}

// ExerciseProgressResult holds per-exercise totals and, when an exercise is
// selected, its session-by-session progression.
type ExerciseProgressResult struct {
	TotalSets   int                   `json:"total_sets"`
	Exercises   []ExerciseSummary     `json:"exercises"`
	Progression []ExerciseProgression `json:"progression,omitempty"`
}

// e1rm is the Epley estimate of a one-rep max, in SQL over a set_records
// alias sr.
const e1rm = `sr.weight * (1 + sr.reps / 30.0)`

// GetExerciseProgress returns per-exercise stats for completed sessions in
// a time range, plus the progression of exerciseID when it is set.
func (db *DB) GetExerciseProgress(ctx context.Context, userID string, start, end time.Time, exerciseID string) (*ExerciseProgressResult, error) {
	result := &ExerciseProgressResult{Exercises: []ExerciseSummary{}}

	// Query 1: Per-exercise summary
	exRows, err := db.Pool.Query(ctx,
		`SELECT ep.exercise_id, MAX(ep.exercise_name),
		        COUNT(*)::int,
		        COALESCE(SUM(sr.reps), 0)::int,
		        COALESCE(SUM(sr.weight * sr.reps), 0)::float8,
		        COALESCE(MAX(sr.weight), 0)::float8,
		        COALESCE(MAX(`+e1rm+`), 0)::float8
		 FROM set_records sr
		 JOIN exercise_performances ep ON ep.id = sr.performance_id
		 JOIN workout_sessions s ON s.id = ep.session_id
		 WHERE s.user_id = $1 AND s.status = 'completed'
		   AND s.completed_at >= $2 AND s.completed_at < $3
		   AND sr.reps > 0
		 GROUP BY ep.exercise_id
		 ORDER BY SUM(sr.weight * sr.reps) DESC`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying exercise summary: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var e ExerciseSummary
		if err := exRows.Scan(&e.ExerciseID, &e.Name, &e.TotalSets, &e.TotalReps, &e.TonnageKg, &e.MaxWeight, &e.BestE1RM); err != nil {
			return nil, fmt.Errorf("scanning exercise summary: %w", err)
		}
		result.TotalSets += e.TotalSets
		result.Exercises = append(result.Exercises, e)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	// Query 2: Exercise progression (only when an exercise is selected)
	if exerciseID != "" {
		progRows, err := db.Pool.Query(ctx,
			`SELECT s.completed_at::date,
			        COALESCE(MAX(sr.weight), 0)::float8,
			        COALESCE(SUM(sr.weight * sr.reps), 0)::float8,
			        COUNT(*)::int,
			        COALESCE(MAX(`+e1rm+`), 0)::float8
			 FROM set_records sr
			 JOIN exercise_performances ep ON ep.id = sr.performance_id
			 JOIN workout_sessions s ON s.id = ep.session_id
			 WHERE s.user_id = $1 AND s.status = 'completed'
			   AND s.completed_at >= $2 AND s.completed_at < $3
			   AND ep.exercise_id = $4
			   AND sr.reps > 0
			 GROUP BY s.completed_at::date
			 ORDER BY s.completed_at::date ASC`,
			userID, start, end, exerciseID)
		if err != nil {
			return nil, fmt.Errorf("querying exercise progression: %w", err)
		}
		defer progRows.Close()

		for progRows.Next() {
			var p ExerciseProgression
			var d time.Time
			if err := progRows.Scan(&d, &p.MaxWeight, &p.SessionTonnage, &p.Sets, &p.E1RM); err != nil {
				return nil, fmt.Errorf("scanning exercise progression: %w", err)
			}
			p.Date = d.Format("2006-01-02")
			result.Progression = append(result.Progression, p)
		}
		if err := progRows.Err(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
