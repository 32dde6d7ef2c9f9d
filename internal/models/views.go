package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionHeader is the session part of a session view.
type SessionHeader struct {
	ID                      uuid.UUID  `json:"id"`
	ProgramID               string     `json:"program_id"`
	DayID                   string     `json:"day_id"`
	ProgramInstanceID       *uuid.UUID `json:"program_instance_id"`
	ProgramName             string     `json:"program_name"`
	DayTitle                string     `json:"day_title"`
	StartedAt               time.Time  `json:"started_at"`
	CompletedAt             *time.Time `json:"completed_at"`
	Status                  Status     `json:"status"`
	LastPausedAt            *time.Time `json:"last_paused_at"`
	AccumulatedPauseSeconds int        `json:"accumulated_pause_seconds"`
	DurationSeconds         *int       `json:"duration_seconds"`
	Rating                  *int       `json:"rating"`
	ElapsedSeconds          int        `json:"elapsed_seconds"`
}

// ViewExercise is the exercise shown at one plan position.
type ViewExercise struct {
	ExerciseDescriptor
	OrderIndex int  `json:"order_index"`
	Swapped    bool `json:"swapped"`
}

// ViewSet is one set in the flattened set list of a session view.
type ViewSet struct {
	ExerciseID string  `json:"exercise_id"`
	OrderIndex int     `json:"order_index"`
	SetNumber  int     `json:"set_number"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight"`
}

// SessionView is the full session as served to a live workout screen.
type SessionView struct {
	Session   SessionHeader  `json:"workout"`
	Exercises []ViewExercise `json:"exercises"`
	Sets      []ViewSet      `json:"sets"`
}

// SetsFor returns the sets logged at the given order index.
func (v *SessionView) SetsFor(orderIndex int) []ViewSet {
	var out []ViewSet
	for _, s := range v.Sets {
		if s.OrderIndex == orderIndex {
			out = append(out, s)
		}
	}
	return out
}

// HistoryEntry is one completed session in the history list.
type HistoryEntry struct {
	ID              uuid.UUID `json:"id"`
	ProgramID       string    `json:"program_id"`
	DayID           string    `json:"day_id"`
	ProgramName     string    `json:"program_name"`
	DayTitle        string    `json:"day_title"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds *int      `json:"duration_seconds"`
	Rating          *int      `json:"rating"`
	ExerciseCount   int       `json:"exercise_count"`
}

// DetailExercise is one performance of a ledger-backed session detail.
type DetailExercise struct {
	ExerciseDescriptor
	OrderIndex       int        `json:"order_index"`
	Sets             []SetEntry `json:"sets"`
	Checksum         string     `json:"checksum"`
	SnapshotChecksum string     `json:"snapshot_checksum"`
}

// SessionDetail is a session rebuilt from the authoritative set records.
type SessionDetail struct {
	Session   SessionHeader    `json:"workout"`
	Exercises []DetailExercise `json:"exercises"`
}

// ExerciseHistoryEntry groups the sets of one exercise in one completed session.
type ExerciseHistoryEntry struct {
	SessionID uuid.UUID  `json:"session_id"`
	Date      time.Time  `json:"date"`
	Sets      []SetEntry `json:"sets"`
}

// InProgressSession is the most recent unfinished session for a program day.
type InProgressSession struct {
	SessionID uuid.UUID  `json:"session_id"`
	ProgramID string     `json:"program_id"`
	DayID     string     `json:"day_id"`
	Status    Status     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	LastSetAt *time.Time `json:"last_set_at"`
}
