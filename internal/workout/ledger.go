package workout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// SetInput is one set write from a live workout screen.
type SetInput struct {
	SessionID    uuid.UUID
	UserID       string
	OrderIndex   int
	ExerciseID   string
	ExerciseName string
	SetNumber    int
	Reps         int
	Weight       float64
}

func (in SetInput) validate() error {
	switch {
	case in.UserID == "":
		return validationf("user id is required")
	case in.SessionID == uuid.Nil:
		return validationf("session id is required")
	case in.ExerciseID == "":
		return validationf("exercise id is required")
	case in.OrderIndex < 0:
		return validationf("exercise order must not be negative, got %d", in.OrderIndex)
	case in.SetNumber < 1:
		return validationf("set number must be at least 1, got %d", in.SetNumber)
	case in.Reps < 0:
		return validationf("reps must not be negative, got %d", in.Reps)
	case in.Weight < 0:
		return validationf("weight must not be negative, got %g", in.Weight)
	}
	return nil
}

// UpsertSet records reps and weight for one set. The (performance, set
// number) pair is written last-write-wins, so repeating a call is harmless.
// The performance at the order index is created on first write, with targets
// copied from the catalog's current entry for the exercise. Every write ends
// by rebuilding the performance's sets snapshot from its set records.
func (e *Engine) UpsertSet(ctx context.Context, in SetInput) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "upsert_set", begin, err) }(time.Now())

	if err := in.validate(); err != nil {
		return err
	}

	err = e.store.InTx(ctx, func(q Queries) error {
		s, err := q.GetSession(ctx, in.SessionID, in.UserID)
		if err != nil {
			return err
		}
		if err := checkOrderIndex(s, in.OrderIndex); err != nil {
			return err
		}

		perf, err := e.performanceFor(ctx, q, s.ID, in.OrderIndex, func() (*models.ExercisePerformance, error) {
			ex, err := e.catalog.Exercise(ctx, in.ExerciseID)
			if err != nil {
				return nil, err
			}
			desc := ex.WithDefaults()
			if in.ExerciseName != "" {
				desc.Name = in.ExerciseName
			}
			return newPerformance(s.ID, in.OrderIndex, desc), nil
		})
		if err != nil {
			return err
		}

		if err := q.UpsertSetRecord(ctx, models.SetRecord{
			PerformanceID: perf.ID,
			SetNumber:     in.SetNumber,
			Reps:          in.Reps,
			Weight:        in.Weight,
			UpdatedAt:     e.clock(),
		}); err != nil {
			return err
		}

		return e.recompute(ctx, q, perf)
	})
	return classify("upserting set", err)
}

// recompute rebuilds perf's sets snapshot from its set records.
func (e *Engine) recompute(ctx context.Context, q Queries, perf *models.ExercisePerformance) error {
	records, err := q.ListSetRecords(ctx, perf.ID)
	if err != nil {
		return err
	}
	snap := BuildSetsSnapshot(records, perf.Sets.Version+1)
	if err := q.SaveSetsSnapshot(ctx, perf.ID, snap); err != nil {
		return err
	}
	perf.Sets = snap
	e.log.Debug("sets snapshot recomputed", "performance", perf.ID, "version", snap.Version, "sets", len(snap.Sets))
	return nil
}

// performanceFor returns the locked performance at orderIndex, inserting the
// one built by create when none exists yet.
func (e *Engine) performanceFor(ctx context.Context, q Queries, sessionID uuid.UUID, orderIndex int, create func() (*models.ExercisePerformance, error)) (*models.ExercisePerformance, error) {
	perf, err := q.LockPerformance(ctx, sessionID, orderIndex)
	if err == nil {
		return perf, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	perf, err = create()
	if err != nil {
		return nil, err
	}
	if err := q.InsertPerformance(ctx, perf); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		return q.LockPerformance(ctx, sessionID, orderIndex)
	}
	return perf, nil
}

func newPerformance(sessionID uuid.UUID, orderIndex int, ex models.ExerciseDescriptor) *models.ExercisePerformance {
	return &models.ExercisePerformance{
		ID:         uuid.New(),
		SessionID:  sessionID,
		OrderIndex: orderIndex,
		Exercise:   ex,
		Sets:       BuildSetsSnapshot(nil, 0),
	}
}

func checkOrderIndex(s *models.Session, orderIndex int) error {
	if orderIndex < 0 || orderIndex >= len(s.Plan.Slots) {
		return validationf("exercise order %d is outside the plan (%d exercises)", orderIndex, len(s.Plan.Slots))
	}
	return nil
}
