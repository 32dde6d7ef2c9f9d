package workout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// GetView reads the session row and its performance rows from one consistent
// snapshot and merges them into the view served to a workout screen. Set
// records are never read; each performance carries its own cached sets.
func (e *Engine) GetView(ctx context.Context, sessionID uuid.UUID, userID string) (view *models.SessionView, err error) {
	defer func(begin time.Time) { e.observe(ctx, "get_view", begin, err) }(time.Now())

	if userID == "" {
		return nil, validationf("user id is required")
	}

	var (
		s     *models.Session
		perfs []models.ExercisePerformance
	)
	err = e.store.InReadTx(ctx, func(q Queries) error {
		var err error
		if s, err = q.GetSession(ctx, sessionID, userID); err != nil {
			return err
		}
		perfs, err = q.ListPerformances(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, classify("reading session", err)
	}

	view, err = BuildView(s, perfs, e.clock())
	if err != nil {
		return nil, classify("building session view", err)
	}
	return view, nil
}

// StartAndView starts (or finds) the session for a program day and returns
// its view in the same call.
func (e *Engine) StartAndView(ctx context.Context, in StartInput) (uuid.UUID, *models.SessionView, error) {
	id, err := e.Start(ctx, in)
	if err != nil {
		return uuid.Nil, nil, err
	}
	view, err := e.GetView(ctx, id, in.UserID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, view, nil
}

// BuildView merges a session's plan snapshot with its performance rows. A
// position without a performance shows the plan's exercise with no sets.
func BuildView(s *models.Session, perfs []models.ExercisePerformance, now time.Time) (*models.SessionView, error) {
	if s.Plan.ProgramName == "" || s.Plan.Slots == nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, ErrInconsistentData)
	}

	byOrder := make(map[int]*models.ExercisePerformance, len(perfs))
	for i := range perfs {
		p := &perfs[i]
		if p.OrderIndex < 0 || p.OrderIndex >= len(s.Plan.Slots) {
			return nil, fmt.Errorf("session %s: performance at order %d outside plan: %w", s.ID, p.OrderIndex, ErrInconsistentData)
		}
		if p.Sets.Checksum == "" {
			return nil, fmt.Errorf("session %s: performance at order %d has no sets snapshot: %w", s.ID, p.OrderIndex, ErrInconsistentData)
		}
		byOrder[p.OrderIndex] = p
	}

	view := &models.SessionView{
		Session:   header(s, now),
		Exercises: make([]models.ViewExercise, 0, len(s.Plan.Slots)),
		Sets:      []models.ViewSet{},
	}
	for i, slot := range s.Plan.Slots {
		perf := byOrder[i]
		ex := resolveSlot(i, slot, perf)
		view.Exercises = append(view.Exercises, ex)
		if perf == nil {
			continue
		}
		for _, set := range perf.Sets.Sets {
			view.Sets = append(view.Sets, models.ViewSet{
				ExerciseID: ex.ID,
				OrderIndex: i,
				SetNumber:  set.SetNumber,
				Reps:       set.Reps,
				Weight:     set.Weight,
			})
		}
	}
	return view, nil
}

// resolveSlot decides which exercise is shown at one plan position. The
// performance row wins when it names a different exercise than the slot; the
// slot supplies the media references the performance row does not carry.
func resolveSlot(orderIndex int, slot models.PlanSlot, perf *models.ExercisePerformance) models.ViewExercise {
	current := slot.Current()
	if perf == nil || perf.Exercise.ID == current.ID {
		return models.ViewExercise{ExerciseDescriptor: current, OrderIndex: orderIndex, Swapped: slot.Swapped()}
	}

	ex := perf.Exercise
	if ex.VideoURL == nil {
		ex.VideoURL = current.VideoURL
	}
	if ex.ThumbnailURL == nil {
		ex.ThumbnailURL = current.ThumbnailURL
	}
	if ex.MuscleGroupID == nil {
		ex.MuscleGroupID = current.MuscleGroupID
	}
	return models.ViewExercise{
		ExerciseDescriptor: ex.WithDefaults(),
		OrderIndex:         orderIndex,
		Swapped:            ex.ID != slot.Original.ID,
	}
}

func header(s *models.Session, now time.Time) models.SessionHeader {
	return models.SessionHeader{
		ID:                      s.ID,
		ProgramID:               s.ProgramID,
		DayID:                   s.DayID,
		ProgramInstanceID:       s.ProgramInstanceID,
		ProgramName:             s.Plan.ProgramName,
		DayTitle:                s.Plan.DayTitle,
		StartedAt:               s.StartedAt,
		CompletedAt:             s.CompletedAt,
		Status:                  s.Status,
		LastPausedAt:            s.LastPausedAt,
		AccumulatedPauseSeconds: s.AccumulatedPauseSeconds,
		DurationSeconds:         s.DurationSeconds,
		Rating:                  s.Rating,
		ElapsedSeconds:          SessionElapsed(s, now),
	}
}

// Detail rebuilds a session from its authoritative set records. Each exercise
// reports both the checksum of the records and the checksum of its cached
// snapshot; the two are equal unless the cache has drifted.
func (e *Engine) Detail(ctx context.Context, sessionID uuid.UUID, userID string) (detail *models.SessionDetail, err error) {
	defer func(begin time.Time) { e.observe(ctx, "detail", begin, err) }(time.Now())

	if userID == "" {
		return nil, validationf("user id is required")
	}

	var (
		s       *models.Session
		perfs   []models.ExercisePerformance
		records []models.SetRecord
	)
	err = e.store.InReadTx(ctx, func(q Queries) error {
		var err error
		if s, err = q.GetSession(ctx, sessionID, userID); err != nil {
			return err
		}
		if perfs, err = q.ListPerformances(ctx, sessionID); err != nil {
			return err
		}
		records, err = q.ListSessionSetRecords(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, classify("reading session detail", err)
	}

	byPerf := make(map[uuid.UUID][]models.SetRecord, len(perfs))
	for _, r := range records {
		byPerf[r.PerformanceID] = append(byPerf[r.PerformanceID], r)
	}

	detail = &models.SessionDetail{
		Session:   header(s, e.clock()),
		Exercises: make([]models.DetailExercise, 0, len(perfs)),
	}
	for _, p := range perfs {
		snap := BuildSetsSnapshot(byPerf[p.ID], p.Sets.Version)
		detail.Exercises = append(detail.Exercises, models.DetailExercise{
			ExerciseDescriptor: p.Exercise,
			OrderIndex:         p.OrderIndex,
			Sets:               snap.Sets,
			Checksum:           snap.Checksum,
			SnapshotChecksum:   p.Sets.Checksum,
		})
	}
	return detail, nil
}
