package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/metrics"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
	"github.com/meltforce/liftlog/internal/workout"
)

// Sessions is the workout engine as used by the REST handlers.
// *workout.Engine satisfies it.
type Sessions interface {
	Start(ctx context.Context, in workout.StartInput) (uuid.UUID, error)
	StartAndView(ctx context.Context, in workout.StartInput) (uuid.UUID, *models.SessionView, error)
	GetView(ctx context.Context, sessionID uuid.UUID, userID string) (*models.SessionView, error)
	Detail(ctx context.Context, sessionID uuid.UUID, userID string) (*models.SessionDetail, error)
	Pause(ctx context.Context, sessionID uuid.UUID, userID string) error
	Resume(ctx context.Context, sessionID uuid.UUID, userID string) (int, error)
	Complete(ctx context.Context, sessionID uuid.UUID, userID string, durationSeconds *int) error
	Rate(ctx context.Context, sessionID uuid.UUID, userID string, rating int) error
	Reset(ctx context.Context, sessionID uuid.UUID, userID string) (workout.ResetResult, error)
	Delete(ctx context.Context, sessionID uuid.UUID, userID string) error
	SwapExercise(ctx context.Context, in workout.SwapInput) error
	UpsertSet(ctx context.Context, in workout.SetInput) error
}

var _ Sessions = (*workout.Engine)(nil)

// History holds the read-only queries over past training. *storage.DB
// satisfies it.
type History interface {
	History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	ExerciseHistory(ctx context.Context, userID, exerciseID string, limit int) ([]models.ExerciseHistoryEntry, error)
	LastLifts(ctx context.Context, userID string, exerciseIDs []string) (map[string][]models.ExerciseHistoryEntry, error)
	CompletedDayIDs(ctx context.Context, userID, programID string) ([]string, error)
	InProgress(ctx context.Context, userID, programID, dayID string) (*models.InProgressSession, error)
	GetDataStats(ctx context.Context, userID string) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, userID string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
	GetExerciseProgress(ctx context.Context, userID string, start, end time.Time, exerciseID string) (*storage.ExerciseProgressResult, error)
	EnsureUser(ctx context.Context, login, displayName string) error
}

var _ History = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions Sessions
	history  History
	log      *slog.Logger
	router   chi.Router

	apiKey  string
	devUser UserInfo
	ts      WhoIser
	seen    sync.Map

	limiter       RequestRateLimiter
	setsPerMinute int

	metrics        *metrics.Manager
	metricsHandler http.Handler
	mcp            http.Handler
}

// New creates a new Server with all routes configured. Requests are
// attributed to devLogin until SetTailscale is called.
func New(sessions Sessions, history History, devLogin string, log *slog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		history:  history,
		log:      log,
		devUser:  UserInfo{Login: devLogin, DisplayName: "Local Dev User"},
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetAPIKey requires the X-API-Key header on /api and /mcp.
func (s *Server) SetAPIKey(key string) {
	s.apiKey = key
}

// SetTailscale resolves request identities through tailnet WhoIs lookups.
func (s *Server) SetTailscale(w WhoIser) {
	s.ts = w
}

// SetRateLimiter limits set writes to perMinute per user.
func (s *Server) SetRateLimiter(l RequestRateLimiter, perMinute int) {
	s.limiter = l
	s.setsPerMinute = perMinute
}

// SetMetrics records request metrics on m and serves h on /metrics.
func (s *Server) SetMetrics(m *metrics.Manager, h http.Handler) {
	s.metrics = m
	s.metricsHandler = h
}

// SetMCP mounts the MCP streamable HTTP handler on /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.recovery)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(s.requestMetrics)
	s.router.Use(CORS)

	s.router.Get("/metrics", s.handleMetrics)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiKeyAuth)
		r.Use(s.identity)

		r.Get("/me", s.handleMe)
		r.Get("/stats", s.handleStats)
		r.Get("/training/summary", s.handleTrainingSummary)
		r.Get("/training/progress", s.handleExerciseProgress)

		r.Route("/workouts", func(r chi.Router) {
			r.Post("/", s.handleStart)
			r.Get("/", s.handleHistory)
			r.Post("/session", s.handleStartAndView)
			r.With(s.rateLimitSets).Post("/sets", s.handleUpsertSet)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleDetail)
				r.Delete("/", s.handleDelete)
				r.Get("/session", s.handleView)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/complete", s.handleComplete)
				r.Post("/rate", s.handleRate)
				r.Post("/reset", s.handleReset)
				r.Post("/swap", s.handleSwap)
			})
		})

		r.Get("/exercises/last-lifts", s.handleLastLifts)
		r.Get("/exercises/{id}/history", s.handleExerciseHistory)
		r.Get("/programs/{id}/completed-days", s.handleCompletedDays)
		r.Get("/programs/{id}/days/{dayId}/in-progress", s.handleInProgress)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.apiKeyAuth)
		r.Use(s.identity)
		r.Handle("/mcp", http.HandlerFunc(s.handleMCP))
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metricsHandler == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics disabled"})
		return
	}
	s.metricsHandler.ServeHTTP(w, r)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mcp disabled"})
		return
	}
	s.mcp.ServeHTTP(w, r)
}
