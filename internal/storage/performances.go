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

const performanceColumns = `id, session_id, order_index, exercise_id, exercise_name,
	 target_sets, target_reps, rest_seconds, video_url, thumbnail_url, muscle_group_id,
	 sets_snapshot, sets_version, sets_checksum`

// LockPerformance reads the performance at an order index and locks its row
// so concurrent set writes recompute the snapshot one at a time.
func (s queries) LockPerformance(ctx context.Context, sessionID uuid.UUID, orderIndex int) (*models.ExercisePerformance, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+performanceColumns+` FROM exercise_performances
		 WHERE session_id = $1 AND order_index = $2
		 FOR UPDATE`,
		sessionID, orderIndex)
	p, err := scanPerformance(row)
	if err != nil {
		return nil, fmt.Errorf("locking performance: %w", notFound(err))
	}
	return p, nil
}

// InsertPerformance creates a performance row. Returns workout.ErrConflict
// when the order index is already taken.
func (s queries) InsertPerformance(ctx context.Context, p *models.ExercisePerformance) error {
	sets, err := json.Marshal(p.Sets.Sets)
	if err != nil {
		return fmt.Errorf("encoding sets snapshot: %w", err)
	}
	ex := p.Exercise
	tag, err := s.q.Exec(ctx,
		`INSERT INTO exercise_performances (id, session_id, order_index, exercise_id, exercise_name,
		 target_sets, target_reps, rest_seconds, video_url, thumbnail_url, muscle_group_id,
		 sets_snapshot, sets_version, sets_checksum)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT DO NOTHING`,
		p.ID, p.SessionID, p.OrderIndex, ex.ID, ex.Name,
		ex.TargetSets, ex.TargetReps, ex.RestSeconds, ex.VideoURL, ex.ThumbnailURL, ex.MuscleGroupID,
		sets, p.Sets.Version, p.Sets.Checksum)
	if err != nil {
		return fmt.Errorf("inserting performance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrConflict
	}
	return nil
}

// UpdatePerformanceExercise relabels a performance with another exercise.
// Its set records are untouched.
func (s queries) UpdatePerformanceExercise(ctx context.Context, id uuid.UUID, ex models.ExerciseDescriptor) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE exercise_performances SET
		 exercise_id = $2, exercise_name = $3, target_sets = $4, target_reps = $5, rest_seconds = $6,
		 video_url = $7, thumbnail_url = $8, muscle_group_id = $9
		 WHERE id = $1`,
		id, ex.ID, ex.Name, ex.TargetSets, ex.TargetReps, ex.RestSeconds,
		ex.VideoURL, ex.ThumbnailURL, ex.MuscleGroupID)
	if err != nil {
		return fmt.Errorf("updating performance exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating performance exercise: %w", workout.ErrNotFound)
	}
	return nil
}

// ListPerformances returns a session's performances in plan order.
func (s queries) ListPerformances(ctx context.Context, sessionID uuid.UUID) ([]models.ExercisePerformance, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+performanceColumns+` FROM exercise_performances
		 WHERE session_id = $1
		 ORDER BY order_index`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying performances: %w", err)
	}
	defer rows.Close()

	var result []models.ExercisePerformance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning performance: %w", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// DeletePerformances removes every performance of a session together with
// its set records.
func (s queries) DeletePerformances(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.q.Exec(ctx,
		`DELETE FROM exercise_performances WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("deleting performances: %w", err)
	}
	return nil
}

// SaveSetsSnapshot stores a recomputed sets snapshot.
func (s queries) SaveSetsSnapshot(ctx context.Context, performanceID uuid.UUID, snap models.SetsSnapshot) error {
	sets, err := json.Marshal(snap.Sets)
	if err != nil {
		return fmt.Errorf("encoding sets snapshot: %w", err)
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE exercise_performances SET sets_snapshot = $2, sets_version = $3, sets_checksum = $4
		 WHERE id = $1`,
		performanceID, sets, snap.Version, snap.Checksum)
	if err != nil {
		return fmt.Errorf("saving sets snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("saving sets snapshot: %w", workout.ErrNotFound)
	}
	return nil
}

func scanPerformance(row pgx.Row) (*models.ExercisePerformance, error) {
	var (
		p        models.ExercisePerformance
		sets     []byte
		checksum *string
	)
	ex := &p.Exercise
	err := row.Scan(&p.ID, &p.SessionID, &p.OrderIndex, &ex.ID, &ex.Name,
		&ex.TargetSets, &ex.TargetReps, &ex.RestSeconds, &ex.VideoURL, &ex.ThumbnailURL, &ex.MuscleGroupID,
		&sets, &p.Sets.Version, &checksum)
	if err != nil {
		return nil, err
	}
	if checksum != nil {
		p.Sets.Checksum = *checksum
	}
	if err := json.Unmarshal(sets, &p.Sets.Sets); err != nil {
		return nil, fmt.Errorf("decoding sets snapshot: %w", err)
	}
	return &p, nil
}
