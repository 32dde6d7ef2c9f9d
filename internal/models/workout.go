package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a workout session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known session states.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

// Catalog fallbacks for exercises that carry no explicit targets.
const (
	DefaultTargetSets  = 3
	DefaultTargetReps  = "8-12"
	DefaultRestSeconds = 90
)

// ExerciseDescriptor is an exercise as the catalog describes it: identity,
// target parameters and media references.
type ExerciseDescriptor struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	TargetSets    int     `json:"target_sets"`
	TargetReps    string  `json:"target_reps"`
	RestSeconds   int     `json:"rest_seconds"`
	VideoURL      *string `json:"video_url"`
	ThumbnailURL  *string `json:"thumbnail_url"`
	MuscleGroupID *string `json:"muscle_group_id"`
}

// WithDefaults fills zero-valued targets with the catalog fallbacks.
func (d ExerciseDescriptor) WithDefaults() ExerciseDescriptor {
	if d.TargetSets <= 0 {
		d.TargetSets = DefaultTargetSets
	}
	if d.TargetReps == "" {
		d.TargetReps = DefaultTargetReps
	}
	if d.RestSeconds <= 0 {
		d.RestSeconds = DefaultRestSeconds
	}
	return d
}

// PlanSlot is one position of a session's plan snapshot. Original is what the
// catalog said when the session started; Override is set only by an exercise
// swap and records when the original was superseded.
type PlanSlot struct {
	Original     ExerciseDescriptor  `json:"original"`
	Override     *ExerciseDescriptor `json:"override,omitempty"`
	SupersededAt *time.Time          `json:"superseded_at,omitempty"`
}

// Current returns the descriptor in effect for this slot.
func (p PlanSlot) Current() ExerciseDescriptor {
	if p.Override != nil {
		return *p.Override
	}
	return p.Original
}

// Swapped reports whether the slot has been overridden by a swap.
func (p PlanSlot) Swapped() bool {
	return p.Override != nil
}

// Plan is the frozen plan snapshot captured when a session starts.
type Plan struct {
	ProgramName string     `json:"program_name"`
	DayTitle    string     `json:"day_title"`
	Slots       []PlanSlot `json:"slots"`
}

// DayPlan is the catalog's current plan for a program day.
type DayPlan struct {
	ProgramID   string               `json:"program_id"`
	ProgramName string               `json:"program_name"`
	DayID       string               `json:"day_id"`
	DayTitle    string               `json:"day_title"`
	Exercises   []ExerciseDescriptor `json:"exercises"`
}

// Freeze converts the day plan into a session plan snapshot.
func (d DayPlan) Freeze() Plan {
	slots := make([]PlanSlot, len(d.Exercises))
	for i, ex := range d.Exercises {
		slots[i] = PlanSlot{Original: ex.WithDefaults()}
	}
	return Plan{ProgramName: d.ProgramName, DayTitle: d.DayTitle, Slots: slots}
}

// Session is one workout attempt, the row in the workout_sessions table.
type Session struct {
	ID                      uuid.UUID  `json:"id"`
	UserID                  string     `json:"user_id"`
	ProgramID               string     `json:"program_id"`
	DayID                   string     `json:"day_id"`
	ProgramInstanceID       *uuid.UUID `json:"program_instance_id"`
	StartedAt               time.Time  `json:"started_at"`
	CompletedAt             *time.Time `json:"completed_at"`
	Status                  Status     `json:"status"`
	LastPausedAt            *time.Time `json:"last_paused_at"`
	AccumulatedPauseSeconds int        `json:"accumulated_pause_seconds"`
	DurationSeconds         *int       `json:"duration_seconds"`
	Rating                  *int       `json:"rating"`
	Plan                    Plan       `json:"plan"`
}

// SetEntry is one set inside a cached sets snapshot.
type SetEntry struct {
	SetNumber int     `json:"set_number"`
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
}

// SetsSnapshot is the cached ordered set list of a performance. Version
// increases on every recompute; Checksum is derived from Sets only, so a
// snapshot rebuilt from the same set records always has the same checksum.
type SetsSnapshot struct {
	Version  int64      `json:"version"`
	Checksum string     `json:"checksum"`
	Sets     []SetEntry `json:"sets"`
}

// ExercisePerformance is one exercise's occurrence within a session,
// addressed by the plan order index.
type ExercisePerformance struct {
	ID         uuid.UUID          `json:"id"`
	SessionID  uuid.UUID          `json:"session_id"`
	OrderIndex int                `json:"order_index"`
	Exercise   ExerciseDescriptor `json:"exercise"`
	Sets       SetsSnapshot       `json:"sets_snapshot"`
}

// SetRecord is the authoritative row for one logged set.
type SetRecord struct {
	PerformanceID uuid.UUID `json:"performance_id"`
	SetNumber     int       `json:"set_number"`
	Reps          int       `json:"reps"`
	Weight        float64   `json:"weight"`
	UpdatedAt     time.Time `json:"updated_at"`
}
