//go:build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/catalog"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/workout"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const integrationCatalog = `
muscle_groups:
  - {id: chest, name: Chest}
  - {id: back, name: Back}
  - {id: legs, name: Legs}
exercises:
  - {id: bench, name: Bench Press, target_sets: 4, target_reps: "5", rest_seconds: 180, muscle_group: chest}
  - {id: row, name: Barbell Row, muscle_group: back}
  - {id: squat, name: Back Squat, target_sets: 5, target_reps: "5", rest_seconds: 240, muscle_group: legs}
  - {id: incline, name: Incline Dumbbell Press, target_sets: 3, target_reps: "10", rest_seconds: 120, muscle_group: chest}
programs:
  - id: ul
    name: Upper Lower
    days:
      - id: ul-a
        title: Day A
        exercises:
          - {exercise: bench}
          - {exercise: row, target_reps: "6-8"}
          - {exercise: squat}
      - id: ul-b
        title: Day B
        exercises:
          - {exercise: squat}
`

type StorageSuite struct {
	suite.Suite
	dockerPool *dockertest.Pool
	resource   *dockertest.Resource
	db         *DB
	engine     *workout.Engine
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupSuite() {
	ctx := context.Background()

	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	if err = s.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	s.resource, err = s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=liftlog",
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(s.T(), err, "run postgres")

	dsn := fmt.Sprintf("postgres://postgres@localhost:%s/liftlog?sslmode=disable", s.resource.GetPort("5432/tcp"))
	err = s.dockerPool.Retry(func() error {
		db, err := New(ctx, dsn)
		if err != nil {
			return err
		}
		s.db = db
		return nil
	})
	require.NoError(s.T(), err, "connect to postgres")
	require.NoError(s.T(), RunMigrations(dsn, "../../migrations"))

	f, err := catalog.Parse([]byte(integrationCatalog))
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.db.SeedCatalog(ctx, f))

	s.engine = workout.New(s.db, s.db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *StorageSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.resource != nil {
		if err := s.resource.Close(); err != nil {
			fmt.Printf("postgres teardown: %s\n", err)
		}
	}
}

func (s *StorageSuite) start(user string) uuid.UUID {
	id, err := s.engine.Start(context.Background(), workout.StartInput{UserID: user, ProgramID: "ul", DayID: "ul-a"})
	s.Require().NoError(err)
	return id
}

func (s *StorageSuite) TestDayPlanAppliesDayTargets() {
	day, err := s.db.DayPlan(context.Background(), "ul", "ul-a")
	s.Require().NoError(err)
	s.Equal("Upper Lower", day.ProgramName)
	s.Require().Len(day.Exercises, 3)
	s.Equal("6-8", day.Exercises[1].TargetReps)
	s.Equal(models.DefaultTargetSets, day.Exercises[1].TargetSets)
	s.Equal(180, day.Exercises[0].RestSeconds)

	_, err = s.db.DayPlan(context.Background(), "ul", "nope")
	s.ErrorIs(err, workout.ErrNotFound)
	_, err = s.db.Exercise(context.Background(), "nope")
	s.ErrorIs(err, workout.ErrNotFound)
}

func (s *StorageSuite) TestStartIsIdempotentAcrossConnections() {
	const user = "idempotent@example.com"
	ids := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.engine.Start(context.Background(), workout.StartInput{UserID: user, ProgramID: "ul", DayID: "ul-a"})
			assert.NoError(s.T(), err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		s.Equal(ids[0], id)
	}
}

func (s *StorageSuite) TestConcurrentSetWritesKeepSnapshotInSync() {
	ctx := context.Background()
	const user = "ledger@example.com"
	id := s.start(user)

	var wg sync.WaitGroup
	for set := 1; set <= 6; set++ {
		wg.Add(1)
		go func(set int) {
			defer wg.Done()
			err := s.engine.UpsertSet(ctx, workout.SetInput{
				SessionID: id, UserID: user, OrderIndex: 0, ExerciseID: "bench",
				SetNumber: set, Reps: 5, Weight: 100 + float64(set)*2.5,
			})
			assert.NoError(s.T(), err)
		}(set)
	}
	wg.Wait()

	view, err := s.engine.GetView(ctx, id, user)
	s.Require().NoError(err)
	sets := view.SetsFor(0)
	s.Require().Len(sets, 6)
	for i, set := range sets {
		s.Equal(i+1, set.SetNumber)
	}

	detail, err := s.engine.Detail(ctx, id, user)
	s.Require().NoError(err)
	s.Require().Len(detail.Exercises, 1)
	s.Equal(detail.Exercises[0].Checksum, detail.Exercises[0].SnapshotChecksum)
}

func (s *StorageSuite) TestSwapPatchesPlanAndPerformance() {
	ctx := context.Background()
	const user = "swap@example.com"
	id := s.start(user)

	s.Require().NoError(s.engine.UpsertSet(ctx, workout.SetInput{SessionID: id, UserID: user, OrderIndex: 0, ExerciseID: "bench", SetNumber: 1, Reps: 5, Weight: 100}))
	s.Require().NoError(s.engine.SwapExercise(ctx, workout.SwapInput{SessionID: id, UserID: user, OrderIndex: 0, NewExerciseID: "incline"}))
	s.Require().NoError(s.engine.SwapExercise(ctx, workout.SwapInput{SessionID: id, UserID: user, OrderIndex: 2, NewExerciseID: "incline"}))

	view, err := s.engine.GetView(ctx, id, user)
	s.Require().NoError(err)
	s.Equal("incline", view.Exercises[0].ID)
	s.Equal("incline", view.Exercises[2].ID)
	s.Equal("row", view.Exercises[1].ID)
	s.Require().Len(view.SetsFor(0), 1)
	s.Equal("incline", view.SetsFor(0)[0].ExerciseID)
	s.Empty(view.SetsFor(2))

	sess, err := s.db.GetSession(ctx, id, user)
	s.Require().NoError(err)
	s.Equal("bench", sess.Plan.Slots[0].Original.ID)
	s.Require().NotNil(sess.Plan.Slots[0].Override)
	s.Equal("incline", sess.Plan.Slots[0].Override.ID)
}

func (s *StorageSuite) TestResetAndDeleteCascade() {
	ctx := context.Background()
	const user = "reset@example.com"
	id := s.start(user)
	s.Require().NoError(s.engine.UpsertSet(ctx, workout.SetInput{SessionID: id, UserID: user, OrderIndex: 1, ExerciseID: "row", SetNumber: 1, Reps: 8, Weight: 60}))

	res, err := s.engine.Reset(ctx, id, user)
	s.Require().NoError(err)
	s.Equal(workout.ResetResult{ProgramID: "ul", DayID: "ul-a"}, res)

	records, err := s.db.ListSessionSetRecords(ctx, id)
	s.Require().NoError(err)
	s.Empty(records)

	view, err := s.engine.GetView(ctx, id, user)
	s.Require().NoError(err)
	s.Equal("Day A", view.Session.DayTitle)

	s.Require().NoError(s.engine.Delete(ctx, id, user))
	_, err = s.engine.GetView(ctx, id, user)
	s.ErrorIs(err, workout.ErrNotFoundOrUnauthorized)
}

func (s *StorageSuite) TestHistoryQueries() {
	ctx := context.Background()
	const user = "history@example.com"
	id := s.start(user)
	for set := 1; set <= 3; set++ {
		s.Require().NoError(s.engine.UpsertSet(ctx, workout.SetInput{SessionID: id, UserID: user, OrderIndex: 2, ExerciseID: "squat", SetNumber: set, Reps: 5, Weight: 140}))
	}

	inProgress, err := s.db.InProgress(ctx, user, "ul", "ul-a")
	s.Require().NoError(err)
	s.Equal(id, inProgress.SessionID)
	s.NotNil(inProgress.LastSetAt)

	d := 3600
	s.Require().NoError(s.engine.Complete(ctx, id, user, &d))
	s.Require().NoError(s.engine.Rate(ctx, id, user, 4))

	_, err = s.db.InProgress(ctx, user, "ul", "ul-a")
	s.ErrorIs(err, workout.ErrNotFound)

	history, err := s.db.History(ctx, user, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(1, history[0].ExerciseCount)
	s.Equal("Upper Lower", history[0].ProgramName)

	exHistory, err := s.db.ExerciseHistory(ctx, user, "squat", 10)
	s.Require().NoError(err)
	s.Require().Len(exHistory, 1)
	s.Len(exHistory[0].Sets, 3)

	lifts, err := s.db.LastLifts(ctx, user, []string{"squat", "bench"})
	s.Require().NoError(err)
	s.Len(lifts["squat"], 1)
	s.Empty(lifts["bench"])

	days, err := s.db.CompletedDayIDs(ctx, user, "ul")
	s.Require().NoError(err)
	s.Equal([]string{"ul-a"}, days)

	stats, err := s.db.GetDataStats(ctx, user)
	s.Require().NoError(err)
	s.EqualValues(1, stats.CompletedSessions)
	s.EqualValues(3, stats.TotalSets)
	s.InDelta(2100, stats.TonnageKg, 0.01)

	summary, err := s.db.GetTrainingSummary(ctx, user, time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 0, 1), "1 week")
	s.Require().NoError(err)
	s.Require().Len(summary, 1)
	s.Equal(3, summary[0].WorkingSets)

	progress, err := s.db.GetExerciseProgress(ctx, user, time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 0, 1), "squat")
	s.Require().NoError(err)
	s.Require().Len(progress.Exercises, 1)
	s.InDelta(140*(1+5/30.0), progress.Exercises[0].BestE1RM, 0.01)
	s.Len(progress.Progression, 1)
}

func (s *StorageSuite) TestEnsureUser() {
	ctx := context.Background()
	s.Require().NoError(s.db.EnsureUser(ctx, "carol@example.com", "Carol"))
	s.Require().NoError(s.db.EnsureUser(ctx, "carol@example.com", ""))

	var name string
	s.Require().NoError(s.db.Pool.QueryRow(ctx, `SELECT display_name FROM users WHERE login = $1`, "carol@example.com").Scan(&name))
	s.Equal("Carol", name)
}
