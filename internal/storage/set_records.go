package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/liftlog/internal/models"
)

// UpsertSetRecord writes one set, overwriting reps and weight when the set
// number was already logged for the performance.
func (s queries) UpsertSetRecord(ctx context.Context, r models.SetRecord) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO set_records (performance_id, set_number, reps, weight, updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (performance_id, set_number) DO UPDATE
		 	SET reps = EXCLUDED.reps, weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at`,
		r.PerformanceID, r.SetNumber, r.Reps, r.Weight, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting set record: %w", err)
	}
	return nil
}

// ListSetRecords returns a performance's set records ordered by set number.
func (s queries) ListSetRecords(ctx context.Context, performanceID uuid.UUID) ([]models.SetRecord, error) {
	rows, err := s.q.Query(ctx,
		`SELECT performance_id, set_number, reps, weight, updated_at
		 FROM set_records
		 WHERE performance_id = $1
		 ORDER BY set_number`,
		performanceID)
	if err != nil {
		return nil, fmt.Errorf("querying set records: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

// ListSessionSetRecords returns every set record of a session in plan order.
func (s queries) ListSessionSetRecords(ctx context.Context, sessionID uuid.UUID) ([]models.SetRecord, error) {
	rows, err := s.q.Query(ctx,
		`SELECT sr.performance_id, sr.set_number, sr.reps, sr.weight, sr.updated_at
		 FROM set_records sr
		 JOIN exercise_performances ep ON ep.id = sr.performance_id
		 WHERE ep.session_id = $1
		 ORDER BY ep.order_index, sr.set_number`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session set records: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

func scanSetRecords(rows pgx.Rows) ([]models.SetRecord, error) {
	var result []models.SetRecord
	for rows.Next() {
		var r models.SetRecord
		if err := rows.Scan(&r.PerformanceID, &r.SetNumber, &r.Reps, &r.Weight, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning set record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
