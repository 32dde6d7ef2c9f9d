package workout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// SwapInput replaces the exercise at one plan position.
type SwapInput struct {
	SessionID       uuid.UUID
	UserID          string
	OrderIndex      int
	NewExerciseID   string
	NewExerciseName string
}

func (in SwapInput) validate() error {
	switch {
	case in.UserID == "":
		return validationf("user id is required")
	case in.SessionID == uuid.Nil:
		return validationf("session id is required")
	case in.NewExerciseID == "":
		return validationf("new exercise id is required")
	case in.OrderIndex < 0:
		return validationf("exercise order must not be negative, got %d", in.OrderIndex)
	}
	return nil
}

// SwapExercise substitutes the exercise at an order index. An existing
// performance at that index is relabeled in place, keeping any sets already
// logged under it; otherwise an empty performance is inserted. The plan
// snapshot slot is patched in the same transaction, so readers never see the
// performance and the plan disagree.
func (e *Engine) SwapExercise(ctx context.Context, in SwapInput) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "swap", begin, err) }(time.Now())

	if err := in.validate(); err != nil {
		return err
	}

	ex, err := e.catalog.Exercise(ctx, in.NewExerciseID)
	if err != nil {
		return classify("fetching exercise", err)
	}
	desc := ex.WithDefaults()
	if in.NewExerciseName != "" {
		desc.Name = in.NewExerciseName
	}

	err = e.store.InTx(ctx, func(q Queries) error {
		s, err := q.LockSession(ctx, in.SessionID, in.UserID)
		if err != nil {
			return err
		}
		if err := checkOrderIndex(s, in.OrderIndex); err != nil {
			return err
		}

		var shell *models.ExercisePerformance
		perf, err := e.performanceFor(ctx, q, s.ID, in.OrderIndex, func() (*models.ExercisePerformance, error) {
			shell = newPerformance(s.ID, in.OrderIndex, desc)
			return shell, nil
		})
		if err != nil {
			return err
		}
		if perf != shell {
			if err := q.UpdatePerformanceExercise(ctx, perf.ID, desc); err != nil {
				return err
			}
		}

		s.Plan.Slots[in.OrderIndex] = patchSlot(s.Plan.Slots[in.OrderIndex], desc, e.clock())
		return q.UpdateSessionPlan(ctx, s.ID, s.Plan)
	})
	if err != nil {
		return classify("swapping exercise", err)
	}

	e.log.Info("exercise swapped", "session", in.SessionID, "order", in.OrderIndex, "exercise", desc.ID)
	return nil
}

// patchSlot applies the one sanctioned plan mutation. Swapping back to the
// original exercise clears the override.
func patchSlot(slot models.PlanSlot, desc models.ExerciseDescriptor, at time.Time) models.PlanSlot {
	if desc.ID == slot.Original.ID {
		return models.PlanSlot{Original: slot.Original}
	}
	if desc.MuscleGroupID == nil {
		desc.MuscleGroupID = slot.Current().MuscleGroupID
	}
	return models.PlanSlot{Original: slot.Original, Override: &desc, SupersededAt: &at}
}
