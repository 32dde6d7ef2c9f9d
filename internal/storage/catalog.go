package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/workout"
)

var _ workout.Catalog = (*DB)(nil)

// DayPlan returns the current plan of a program day. Day-level targets win
// over the exercise defaults.
func (db *DB) DayPlan(ctx context.Context, programID, dayID string) (*models.DayPlan, error) {
	day := &models.DayPlan{ProgramID: programID, DayID: dayID}
	err := db.Pool.QueryRow(ctx,
		`SELECT p.name, d.title
		 FROM workout_days d
		 JOIN programs p ON p.id = d.program_id
		 WHERE d.program_id = $1 AND d.id = $2`,
		programID, dayID).Scan(&day.ProgramName, &day.DayTitle)
	if err != nil {
		return nil, fmt.Errorf("getting day plan: %w", notFound(err))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.name,
		        COALESCE(de.target_sets, e.target_sets, 0),
		        COALESCE(de.target_reps, e.target_reps, ''),
		        COALESCE(de.rest_seconds, e.rest_seconds, 0),
		        e.video_url, e.thumbnail_url, e.muscle_group_id
		 FROM day_exercises de
		 JOIN exercises e ON e.id = de.exercise_id
		 WHERE de.day_id = $1
		 ORDER BY de.position`,
		dayID)
	if err != nil {
		return nil, fmt.Errorf("querying day exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning day exercise: %w", err)
		}
		day.Exercises = append(day.Exercises, ex.WithDefaults())
	}
	return day, rows.Err()
}

// Exercise returns the current catalog entry of an exercise.
func (db *DB) Exercise(ctx context.Context, exerciseID string) (*models.ExerciseDescriptor, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(target_sets, 0), COALESCE(target_reps, ''), COALESCE(rest_seconds, 0),
		        video_url, thumbnail_url, muscle_group_id
		 FROM exercises WHERE id = $1`,
		exerciseID)
	ex, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("getting exercise: %w", notFound(err))
	}
	ex = ex.WithDefaults()
	return &ex, nil
}

// SeedCatalog upserts every entry of a catalog file in one transaction. Days
// listed in the file have their exercise lists replaced.
func (db *DB) SeedCatalog(ctx context.Context, f *catalog.File) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	for _, g := range f.MuscleGroups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO muscle_groups (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			g.ID, g.Name); err != nil {
			return fmt.Errorf("upserting muscle group %s: %w", g.ID, err)
		}
	}

	for _, e := range f.Exercises {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exercises (id, name, target_sets, target_reps, rest_seconds, video_url, thumbnail_url, muscle_group_id)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT (id) DO UPDATE SET
			 	name = EXCLUDED.name, target_sets = EXCLUDED.target_sets, target_reps = EXCLUDED.target_reps,
			 	rest_seconds = EXCLUDED.rest_seconds, video_url = EXCLUDED.video_url,
			 	thumbnail_url = EXCLUDED.thumbnail_url, muscle_group_id = EXCLUDED.muscle_group_id,
			 	updated_at = NOW()`,
			e.ID, e.Name, e.TargetSets, e.TargetReps, e.RestSeconds, e.VideoURL, e.ThumbnailURL, e.MuscleGroup); err != nil {
			return fmt.Errorf("upserting exercise %s: %w", e.ID, err)
		}
	}

	for _, p := range f.Programs {
		if err := seedProgram(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func seedProgram(ctx context.Context, tx pgx.Tx, p catalog.Program) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO programs (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`,
		p.ID, p.Name); err != nil {
		return fmt.Errorf("upserting program %s: %w", p.ID, err)
	}

	for pos, d := range p.Days {
		week := d.Week
		if week == 0 {
			week = 1
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO workout_days (id, program_id, week_number, position, title)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (id) DO UPDATE SET
			 	program_id = EXCLUDED.program_id, week_number = EXCLUDED.week_number,
			 	position = EXCLUDED.position, title = EXCLUDED.title`,
			d.ID, p.ID, week, pos, d.Title); err != nil {
			return fmt.Errorf("upserting day %s: %w", d.ID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM day_exercises WHERE day_id = $1`, d.ID); err != nil {
			return fmt.Errorf("clearing day %s: %w", d.ID, err)
		}
		for i, de := range d.Exercises {
			if _, err := tx.Exec(ctx,
				`INSERT INTO day_exercises (day_id, position, exercise_id, target_sets, target_reps, rest_seconds)
				 VALUES ($1,$2,$3,$4,$5,$6)`,
				d.ID, i, de.Exercise, de.TargetSets, de.TargetReps, de.RestSeconds); err != nil {
				return fmt.Errorf("inserting day %s exercise %d: %w", d.ID, i, err)
			}
		}
	}
	return nil
}

func scanExercise(row pgx.Row) (models.ExerciseDescriptor, error) {
	var ex models.ExerciseDescriptor
	err := row.Scan(&ex.ID, &ex.Name, &ex.TargetSets, &ex.TargetReps, &ex.RestSeconds,
		&ex.VideoURL, &ex.ThumbnailURL, &ex.MuscleGroupID)
	return ex, err
}
