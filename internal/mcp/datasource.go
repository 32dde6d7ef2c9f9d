package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/client"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
	"github.com/meltforce/liftlog/internal/workout"
)

// DataSource abstracts the data layer for MCP tools. Both Local (engine plus
// database) and *client.Client (remote via REST API) satisfy this interface.
type DataSource interface {
	GetView(ctx context.Context, sessionID uuid.UUID, userID string) (*models.SessionView, error)
	History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	ExerciseHistory(ctx context.Context, userID, exerciseID string, limit int) ([]models.ExerciseHistoryEntry, error)
	LastLifts(ctx context.Context, userID string, exerciseIDs []string) (map[string][]models.ExerciseHistoryEntry, error)
	InProgress(ctx context.Context, userID, programID, dayID string) (*models.InProgressSession, error)
	GetDataStats(ctx context.Context, userID string) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, userID string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
	GetExerciseProgress(ctx context.Context, userID string, start, end time.Time, exerciseID string) (*storage.ExerciseProgressResult, error)
}

// Local serves MCP tools from the in-process engine and database.
type Local struct {
	*workout.Engine
	*storage.DB
}

// Compile-time checks: both the local and the remote source satisfy DataSource.
var (
	_ DataSource = Local{}
	_ DataSource = (*client.Client)(nil)
)
