package workout

import (
	"context"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// StartKey identifies "the same day" for start idempotency.
type StartKey struct {
	UserID            string
	ProgramID         string
	DayID             string
	ProgramInstanceID *uuid.UUID
}

// Queries is the set of single-statement operations the engine runs against
// the store. Lookups return ErrNotFound when no row matches; inserts guarded
// by a unique key return ErrConflict when another writer got there first.
// Lists are ordered: performances by order index, set records by set number.
type Queries interface {
	FindSessionID(ctx context.Context, key StartKey) (uuid.UUID, error)
	InsertSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error)
	LockSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error)
	UpdateSessionState(ctx context.Context, s *models.Session) error
	UpdateSessionPlan(ctx context.Context, id uuid.UUID, plan models.Plan) error
	DeleteSession(ctx context.Context, id uuid.UUID, userID string) error

	LockPerformance(ctx context.Context, sessionID uuid.UUID, orderIndex int) (*models.ExercisePerformance, error)
	InsertPerformance(ctx context.Context, p *models.ExercisePerformance) error
	UpdatePerformanceExercise(ctx context.Context, id uuid.UUID, ex models.ExerciseDescriptor) error
	ListPerformances(ctx context.Context, sessionID uuid.UUID) ([]models.ExercisePerformance, error)
	DeletePerformances(ctx context.Context, sessionID uuid.UUID) error

	UpsertSetRecord(ctx context.Context, r models.SetRecord) error
	ListSetRecords(ctx context.Context, performanceID uuid.UUID) ([]models.SetRecord, error)
	ListSessionSetRecords(ctx context.Context, sessionID uuid.UUID) ([]models.SetRecord, error)
	SaveSetsSnapshot(ctx context.Context, performanceID uuid.UUID, snap models.SetsSnapshot) error
}

// Store runs Queries either directly or inside one atomic unit.
type Store interface {
	Queries

	// InTx runs fn in a read-write transaction. fn's error rolls it back.
	InTx(ctx context.Context, fn func(q Queries) error) error
	// InReadTx runs fn against a single consistent snapshot of the store.
	InReadTx(ctx context.Context, fn func(q Queries) error) error
}

// Catalog is the program/exercise catalog the engine denormalizes from.
// Both methods return ErrNotFound for unknown ids.
type Catalog interface {
	DayPlan(ctx context.Context, programID, dayID string) (*models.DayPlan, error)
	Exercise(ctx context.Context, exerciseID string) (*models.ExerciseDescriptor, error)
}
