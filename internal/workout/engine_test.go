package workout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

const (
	testUser  = "alice@example.com"
	otherUser = "bob@example.com"
)

func strp(s string) *string { return &s }

func testCatalog() *memCatalog {
	bench := models.ExerciseDescriptor{ID: "bench", Name: "Bench Press", TargetSets: 4, TargetReps: "5", RestSeconds: 180, VideoURL: strp("https://video/bench"), MuscleGroupID: strp("chest")}
	row := models.ExerciseDescriptor{ID: "row", Name: "Barbell Row", MuscleGroupID: strp("back")}
	squat := models.ExerciseDescriptor{ID: "squat", Name: "Back Squat", TargetSets: 5, TargetReps: "5", RestSeconds: 240}
	incline := models.ExerciseDescriptor{ID: "incline", Name: "Incline Dumbbell Press", TargetSets: 3, TargetReps: "10", RestSeconds: 120}
	return &memCatalog{
		days: map[string]models.DayPlan{
			"p1/d1": {ProgramID: "p1", ProgramName: "Upper Lower", DayID: "d1", DayTitle: "Day A", Exercises: []models.ExerciseDescriptor{bench, row, squat}},
		},
		exercises: map[string]models.ExerciseDescriptor{
			"bench": bench, "row": row, "squat": squat, "incline": incline,
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *memStore, *fakeClock) {
	t.Helper()
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, testCatalog(), log, WithClock(clock.Now)), store, clock
}

func startDay(t *testing.T, e *Engine) uuid.UUID {
	t.Helper()
	id, err := e.Start(context.Background(), StartInput{UserID: testUser, ProgramID: "p1", DayID: "d1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return id
}

func upsert(t *testing.T, e *Engine, id uuid.UUID, order int, exerciseID string, setNumber, reps int, weight float64) {
	t.Helper()
	err := e.UpsertSet(context.Background(), SetInput{
		SessionID: id, UserID: testUser, OrderIndex: order, ExerciseID: exerciseID,
		SetNumber: setNumber, Reps: reps, Weight: weight,
	})
	if err != nil {
		t.Fatalf("UpsertSet(order=%d set=%d): %v", order, setNumber, err)
	}
}

func view(t *testing.T, e *Engine, id uuid.UUID) *models.SessionView {
	t.Helper()
	v, err := e.GetView(context.Background(), id, testUser)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	return v
}

// TestStartIsIdempotent verifies that starting the same day twice returns the
// same session, even after it was completed.
func TestStartIsIdempotent(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	first := startDay(t, e)
	second := startDay(t, e)
	if first != second {
		t.Fatalf("second start = %s, want %s", second, first)
	}

	if err := e.Complete(ctx, first, testUser, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if again := startDay(t, e); again != first {
		t.Errorf("start after completion = %s, want %s", again, first)
	}
	if len(store.sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(store.sessions))
	}
}

// TestStartProgramInstanceIsPartOfKey verifies that a new program instance
// gets its own session for the same day.
func TestStartProgramInstanceIsPartOfKey(t *testing.T) {
	e, _, _ := newTestEngine(t)
	base := startDay(t, e)

	inst := uuid.New()
	id, err := e.Start(context.Background(), StartInput{UserID: testUser, ProgramID: "p1", DayID: "d1", ProgramInstanceID: &inst})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == base {
		t.Error("instance start reused the session without instance")
	}
}

// TestStartFreezesPlan verifies the plan snapshot carries program name, day
// title and catalog defaults for exercises without targets.
func TestStartFreezesPlan(t *testing.T) {
	e, store, clock := newTestEngine(t)
	id := startDay(t, e)

	s := store.sessions[id]
	if s.Status != models.StatusActive {
		t.Errorf("status = %s, want active", s.Status)
	}
	if !s.StartedAt.Equal(clock.Now()) {
		t.Errorf("started_at = %v, want %v", s.StartedAt, clock.Now())
	}
	if s.Plan.ProgramName != "Upper Lower" || s.Plan.DayTitle != "Day A" {
		t.Errorf("plan header = %q/%q", s.Plan.ProgramName, s.Plan.DayTitle)
	}
	if len(s.Plan.Slots) != 3 {
		t.Fatalf("slots = %d, want 3", len(s.Plan.Slots))
	}
	row := s.Plan.Slots[1].Original
	if row.TargetSets != 3 || row.TargetReps != "8-12" || row.RestSeconds != 90 {
		t.Errorf("row targets = %d/%q/%d, want defaults", row.TargetSets, row.TargetReps, row.RestSeconds)
	}
}

// TestStartErrors verifies validation and unknown-day failures.
func TestStartErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   StartInput
		want error
	}{
		{"missing user", StartInput{ProgramID: "p1", DayID: "d1"}, ErrValidation},
		{"missing program", StartInput{UserID: testUser, DayID: "d1"}, ErrValidation},
		{"missing day", StartInput{UserID: testUser, ProgramID: "p1"}, ErrValidation},
		{"unknown day", StartInput{UserID: testUser, ProgramID: "p1", DayID: "d9"}, ErrNotFoundOrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Start(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestStartPersistenceError verifies store failures surface as persistence
// errors with the cause attached.
func TestStartPersistenceError(t *testing.T) {
	e, store, _ := newTestEngine(t)
	cause := errors.New("connection reset")
	store.failOn, store.failErr = "InsertSession", cause

	_, err := e.Start(context.Background(), StartInput{UserID: testUser, ProgramID: "p1", DayID: "d1"})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, want persistence", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want cause kept", err)
	}
	if Kind(err) != "persistence" {
		t.Errorf("Kind = %q", Kind(err))
	}
}

// TestPauseResumeKeepsElapsed pauses at 125s, waits 40s and resumes: the
// pause total grows by 40s and the elapsed time is still 125s.
func TestPauseResumeKeepsElapsed(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	clock.Advance(125 * time.Second)
	if err := e.Pause(ctx, id, testUser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := view(t, e, id).Session.ElapsedSeconds; got != 125 {
		t.Errorf("elapsed while paused = %d, want 125", got)
	}

	clock.Advance(40 * time.Second)
	if got := view(t, e, id).Session.ElapsedSeconds; got != 125 {
		t.Errorf("elapsed after 40s paused = %d, want 125", got)
	}

	acc, err := e.Resume(ctx, id, testUser)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if acc != 40 {
		t.Errorf("accumulated = %d, want 40", acc)
	}
	v := view(t, e, id)
	if v.Session.ElapsedSeconds != 125 {
		t.Errorf("elapsed after resume = %d, want 125", v.Session.ElapsedSeconds)
	}
	if v.Session.Status != models.StatusActive || v.Session.LastPausedAt != nil {
		t.Errorf("after resume status=%s last_paused_at=%v", v.Session.Status, v.Session.LastPausedAt)
	}
}

// TestResumeRoundsPause verifies a fractional pause is rounded to whole seconds.
func TestResumeRoundsPause(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	if err := e.Pause(ctx, id, testUser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(2600 * time.Millisecond)
	acc, err := e.Resume(ctx, id, testUser)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if acc != 3 {
		t.Errorf("accumulated = %d, want 3", acc)
	}
}

// TestResumeWhenNotPausedIsNoop verifies duplicate resume calls are tolerated.
func TestResumeWhenNotPausedIsNoop(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	if err := e.Pause(ctx, id, testUser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(10 * time.Second)
	if _, err := e.Resume(ctx, id, testUser); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.Advance(10 * time.Second)
	acc, err := e.Resume(ctx, id, testUser)
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if acc != 10 {
		t.Errorf("accumulated = %d, want 10", acc)
	}
}

// TestPauseRequiresActive verifies pausing a paused or completed session is
// rejected.
func TestPauseRequiresActive(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	if err := e.Pause(ctx, id, testUser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := e.Pause(ctx, id, testUser); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause paused: err = %v, want invalid transition", err)
	}

	if err := e.Complete(ctx, id, testUser, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := e.Pause(ctx, id, testUser); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause completed: err = %v, want invalid transition", err)
	}
}

// TestCompleteFromPausedComputesDuration verifies a completion without an
// explicit duration uses the frozen elapsed time of a paused session.
func TestCompleteFromPausedComputesDuration(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	clock.Advance(30 * time.Minute)
	if err := e.Pause(ctx, id, testUser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(5 * time.Minute)
	if err := e.Complete(ctx, id, testUser, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	s := store.sessions[id]
	if s.Status != models.StatusCompleted || s.CompletedAt == nil {
		t.Fatalf("status=%s completed_at=%v", s.Status, s.CompletedAt)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 1800 {
		t.Errorf("duration = %v, want 1800", s.DurationSeconds)
	}
}

// TestCompleteExplicitDuration verifies a client-provided duration is stored
// and a second completion is rejected.
func TestCompleteExplicitDuration(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	d := 2712
	if err := e.Complete(ctx, id, testUser, &d); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := *store.sessions[id].DurationSeconds; got != d {
		t.Errorf("duration = %d, want %d", got, d)
	}
	if err := e.Complete(ctx, id, testUser, &d); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second complete: err = %v, want invalid transition", err)
	}

	neg := -1
	if err := e.Complete(ctx, id, testUser, &neg); !errors.Is(err, ErrValidation) {
		t.Errorf("negative duration: err = %v, want validation", err)
	}
}

// TestRate covers rating before completion, out-of-range values and a valid
// rating.
func TestRate(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	if err := e.Rate(ctx, id, testUser, 4); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("rate active: err = %v, want invalid transition", err)
	}
	if store.sessions[id].Rating != nil {
		t.Error("rating stored on active session")
	}

	if err := e.Complete(ctx, id, testUser, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for _, r := range []int{0, 6, -3} {
		if err := e.Rate(ctx, id, testUser, r); !errors.Is(err, ErrValidation) {
			t.Errorf("Rate(%d): err = %v, want validation", r, err)
		}
	}
	if err := e.Rate(ctx, id, testUser, 5); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got := store.sessions[id].Rating; got == nil || *got != 5 {
		t.Errorf("rating = %v, want 5", got)
	}
}

// TestOtherUserCannotTouchSession verifies every operation on a foreign
// session reports not found.
func TestOtherUserCannotTouchSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	ops := map[string]func() error{
		"pause":    func() error { return e.Pause(ctx, id, otherUser) },
		"resume":   func() error { _, err := e.Resume(ctx, id, otherUser); return err },
		"complete": func() error { return e.Complete(ctx, id, otherUser, nil) },
		"rate":     func() error { return e.Rate(ctx, id, otherUser, 3) },
		"reset":    func() error { _, err := e.Reset(ctx, id, otherUser); return err },
		"delete":   func() error { return e.Delete(ctx, id, otherUser) },
		"view":     func() error { _, err := e.GetView(ctx, id, otherUser); return err },
		"detail":   func() error { _, err := e.Detail(ctx, id, otherUser); return err },
		"upsert": func() error {
			return e.UpsertSet(ctx, SetInput{SessionID: id, UserID: otherUser, OrderIndex: 0, ExerciseID: "bench", SetNumber: 1, Reps: 5, Weight: 100})
		},
		"swap": func() error {
			return e.SwapExercise(ctx, SwapInput{SessionID: id, UserID: otherUser, OrderIndex: 0, NewExerciseID: "incline"})
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrNotFoundOrUnauthorized) {
				t.Errorf("err = %v, want not found", err)
			}
		})
	}
}

// TestResetKeepsIdentityAndPlan verifies reset clears performances, sets and
// timer fields while the session id and plan header survive.
func TestResetKeepsIdentityAndPlan(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)

	upsert(t, e, id, 0, "bench", 1, 5, 100)
	upsert(t, e, id, 1, "row", 1, 8, 70)
	clock.Advance(time.Hour)
	if err := e.Complete(ctx, id, testUser, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := e.Rate(ctx, id, testUser, 3); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	clock.Advance(time.Hour)
	res, err := e.Reset(ctx, id, testUser)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if res.ProgramID != "p1" || res.DayID != "d1" {
		t.Errorf("reset result = %+v", res)
	}

	v := view(t, e, id)
	if v.Session.ID != id {
		t.Errorf("id = %s, want %s", v.Session.ID, id)
	}
	if v.Session.ProgramName != "Upper Lower" || v.Session.DayTitle != "Day A" {
		t.Errorf("header = %q/%q", v.Session.ProgramName, v.Session.DayTitle)
	}
	if v.Session.Status != models.StatusActive || v.Session.CompletedAt != nil || v.Session.Rating != nil || v.Session.DurationSeconds != nil {
		t.Errorf("reset left state: %+v", v.Session)
	}
	if !v.Session.StartedAt.Equal(clock.Now()) {
		t.Errorf("started_at = %v, want %v", v.Session.StartedAt, clock.Now())
	}
	if len(v.Sets) != 0 || store.setCount() != 0 || len(store.perfs) != 0 {
		t.Errorf("sets=%d records=%d perfs=%d, want none", len(v.Sets), store.setCount(), len(store.perfs))
	}
	if len(v.Exercises) != 3 {
		t.Errorf("exercises = %d, want 3", len(v.Exercises))
	}
}

// TestDeleteRemovesSession verifies delete removes the session and its
// children.
func TestDeleteRemovesSession(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	id := startDay(t, e)
	upsert(t, e, id, 0, "bench", 1, 5, 100)

	if err := e.Delete(ctx, id, testUser); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.GetView(ctx, id, testUser); !errors.Is(err, ErrNotFoundOrUnauthorized) {
		t.Errorf("view after delete: err = %v", err)
	}
	if len(store.perfs) != 0 || store.setCount() != 0 {
		t.Errorf("children left: perfs=%d records=%d", len(store.perfs), store.setCount())
	}
	if err := e.Delete(ctx, id, testUser); !errors.Is(err, ErrNotFoundOrUnauthorized) {
		t.Errorf("second delete: err = %v", err)
	}
}
