package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingSummaryPeriod holds aggregated training volume for one period.
type TrainingSummaryPeriod struct {
	Period            string   `json:"period"`
	Sessions          int      `json:"sessions"`
	WorkingSets       int      `json:"working_sets"`
	TotalReps         int      `json:"total_reps"`
	TonnageKg         float64  `json:"tonnage_kg"`
	AvgDuration       *float64 `json:"avg_duration_sec,omitempty"`
	AvgSetsPerSession float64  `json:"avg_sets_per_session"`
}

// GetTrainingSummary returns completed-session volume per period, newest
// period first.
func (db *DB) GetTrainingSummary(ctx context.Context, userID string, start, end time.Time, bucket string) ([]TrainingSummaryPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, s.completed_at)::date AS period,
		        COUNT(DISTINCT s.id)::int,
		        COUNT(sr.set_number)::int,
		        COALESCE(SUM(sr.reps), 0)::int,
		        COALESCE(SUM(sr.weight * sr.reps), 0)::float8,
		        (SELECT AVG(s2.duration_seconds)::float8 FROM workout_sessions s2
		         WHERE s2.user_id = $4 AND s2.status = 'completed'
		           AND date_trunc($1, s2.completed_at)::date = date_trunc($1, s.completed_at)::date)
		 FROM workout_sessions s
		 LEFT JOIN exercise_performances ep ON ep.session_id = s.id
		 LEFT JOIN set_records sr ON sr.performance_id = ep.id
		 WHERE s.user_id = $4 AND s.status = 'completed'
		   AND s.completed_at >= $2 AND s.completed_at < $3
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	result := []TrainingSummaryPeriod{}
	for rows.Next() {
		var (
			periodTime time.Time
			p          TrainingSummaryPeriod
		)
		if err := rows.Scan(&periodTime, &p.Sessions, &p.WorkingSets, &p.TotalReps, &p.TonnageKg, &p.AvgDuration); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		if p.Sessions > 0 {
			p.AvgSetsPerSession = float64(p.WorkingSets) / float64(p.Sessions)
		}
		p.Period = periodTime.Format("2006-01-02")
		result = append(result, p)
	}
	return result, rows.Err()
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "month"
	}
}
