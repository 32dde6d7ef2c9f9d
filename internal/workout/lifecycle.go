package workout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// StartInput identifies the program day a user wants to train.
type StartInput struct {
	UserID            string
	ProgramID         string
	DayID             string
	ProgramInstanceID *uuid.UUID
}

func (in StartInput) key() StartKey {
	return StartKey{
		UserID:            in.UserID,
		ProgramID:         in.ProgramID,
		DayID:             in.DayID,
		ProgramInstanceID: in.ProgramInstanceID,
	}
}

func (in StartInput) validate() error {
	switch {
	case in.UserID == "":
		return validationf("user id is required")
	case in.ProgramID == "":
		return validationf("program id is required")
	case in.DayID == "":
		return validationf("day id is required")
	}
	return nil
}

// ResetResult tells the caller which program day the reset session belongs to.
type ResetResult struct {
	ProgramID string `json:"program_id"`
	DayID     string `json:"day_id"`
}

// Start returns the session for the (user, program, day, instance) tuple,
// creating it with a frozen plan snapshot if none exists yet. Repeated starts
// of the same day return the same session whatever its status.
func (e *Engine) Start(ctx context.Context, in StartInput) (id uuid.UUID, err error) {
	defer func(begin time.Time) { e.observe(ctx, "start", begin, err) }(time.Now())

	if err := in.validate(); err != nil {
		return uuid.Nil, err
	}

	id, err = e.store.FindSessionID(ctx, in.key())
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return uuid.Nil, classify("looking up session", err)
	}

	day, err := e.catalog.DayPlan(ctx, in.ProgramID, in.DayID)
	if err != nil {
		return uuid.Nil, classify("fetching day plan", err)
	}

	now := e.clock()
	s := &models.Session{
		ID:                uuid.New(),
		UserID:            in.UserID,
		ProgramID:         in.ProgramID,
		DayID:             in.DayID,
		ProgramInstanceID: in.ProgramInstanceID,
		StartedAt:         now,
		Status:            models.StatusActive,
		Plan:              day.Freeze(),
	}
	if err := e.store.InsertSession(ctx, s); err != nil {
		if !errors.Is(err, ErrConflict) {
			return uuid.Nil, classify("creating session", err)
		}
		// A concurrent start for the same day won the insert.
		id, err = e.store.FindSessionID(ctx, in.key())
		if err != nil {
			return uuid.Nil, classify("looking up session after conflict", err)
		}
		return id, nil
	}

	e.log.Info("session started", "session", s.ID, "program", s.ProgramID, "day", s.DayID, "exercises", len(s.Plan.Slots))
	return s.ID, nil
}

// Pause freezes the workout timer. Only an active session can be paused.
func (e *Engine) Pause(ctx context.Context, sessionID uuid.UUID, userID string) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "pause", begin, err) }(time.Now())

	return e.mutate(ctx, "pausing session", sessionID, userID, func(q Queries, s *models.Session) error {
		if s.Status != models.StatusActive {
			return transitionf("cannot pause a %s session", s.Status)
		}
		now := e.clock()
		s.Status = models.StatusPaused
		s.LastPausedAt = &now
		return q.UpdateSessionState(ctx, s)
	})
}

// Resume restarts the timer of a paused session and returns the new total of
// paused seconds. Resuming a session that is not paused changes nothing and
// returns the current total.
func (e *Engine) Resume(ctx context.Context, sessionID uuid.UUID, userID string) (accumulated int, err error) {
	defer func(begin time.Time) { e.observe(ctx, "resume", begin, err) }(time.Now())

	err = e.mutate(ctx, "resuming session", sessionID, userID, func(q Queries, s *models.Session) error {
		if s.Status != models.StatusPaused || s.LastPausedAt == nil {
			accumulated = s.AccumulatedPauseSeconds
			return nil
		}
		s.AccumulatedPauseSeconds += pauseSeconds(*s.LastPausedAt, e.clock())
		s.Status = models.StatusActive
		s.LastPausedAt = nil
		accumulated = s.AccumulatedPauseSeconds
		return q.UpdateSessionState(ctx, s)
	})
	if err != nil {
		return 0, err
	}
	return accumulated, nil
}

// Complete finishes an active or paused session. A nil duration is computed
// server-side from the session's timestamps.
func (e *Engine) Complete(ctx context.Context, sessionID uuid.UUID, userID string, durationSeconds *int) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "complete", begin, err) }(time.Now())

	if durationSeconds != nil && *durationSeconds < 0 {
		return validationf("duration must not be negative, got %d", *durationSeconds)
	}

	return e.mutate(ctx, "completing session", sessionID, userID, func(q Queries, s *models.Session) error {
		if s.Status == models.StatusCompleted {
			return transitionf("session is already completed")
		}
		now := e.clock()
		duration := Elapsed(s.StartedAt, s.Status, s.LastPausedAt, s.AccumulatedPauseSeconds, now)
		if durationSeconds != nil {
			duration = *durationSeconds
		}
		s.Status = models.StatusCompleted
		s.CompletedAt = &now
		s.DurationSeconds = &duration
		if err := q.UpdateSessionState(ctx, s); err != nil {
			return err
		}
		e.log.Info("session completed", "session", s.ID, "duration_sec", duration)
		return nil
	})
}

// Rate stores a 1-5 rating on a completed session.
func (e *Engine) Rate(ctx context.Context, sessionID uuid.UUID, userID string, rating int) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "rate", begin, err) }(time.Now())

	if rating < 1 || rating > 5 {
		return validationf("rating must be between 1 and 5, got %d", rating)
	}

	return e.mutate(ctx, "rating session", sessionID, userID, func(q Queries, s *models.Session) error {
		if s.Status != models.StatusCompleted {
			return transitionf("cannot rate a %s session", s.Status)
		}
		s.Rating = &rating
		return q.UpdateSessionState(ctx, s)
	})
}

// Reset discards every performance and set of the session and restarts its
// timer. The session id and plan snapshot survive.
func (e *Engine) Reset(ctx context.Context, sessionID uuid.UUID, userID string) (res ResetResult, err error) {
	defer func(begin time.Time) { e.observe(ctx, "reset", begin, err) }(time.Now())

	err = e.mutate(ctx, "resetting session", sessionID, userID, func(q Queries, s *models.Session) error {
		if err := q.DeletePerformances(ctx, s.ID); err != nil {
			return err
		}
		s.StartedAt = e.clock()
		s.Status = models.StatusActive
		s.LastPausedAt = nil
		s.AccumulatedPauseSeconds = 0
		s.CompletedAt = nil
		s.DurationSeconds = nil
		s.Rating = nil
		res = ResetResult{ProgramID: s.ProgramID, DayID: s.DayID}
		return q.UpdateSessionState(ctx, s)
	})
	if err != nil {
		return ResetResult{}, err
	}
	e.log.Info("session reset", "session", sessionID)
	return res, nil
}

// Delete removes the session and everything logged under it.
func (e *Engine) Delete(ctx context.Context, sessionID uuid.UUID, userID string) (err error) {
	defer func(begin time.Time) { e.observe(ctx, "delete", begin, err) }(time.Now())

	if err := e.store.DeleteSession(ctx, sessionID, userID); err != nil {
		return classify("deleting session", err)
	}
	e.log.Info("session deleted", "session", sessionID)
	return nil
}

// mutate locks the caller's session row and runs fn in one transaction.
func (e *Engine) mutate(ctx context.Context, op string, sessionID uuid.UUID, userID string, fn func(q Queries, s *models.Session) error) error {
	if userID == "" {
		return validationf("user id is required")
	}
	err := e.store.InTx(ctx, func(q Queries) error {
		s, err := q.LockSession(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		return fn(q, s)
	})
	if err != nil {
		return classify(op, err)
	}
	return nil
}
