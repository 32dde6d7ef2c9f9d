package workout

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
)

// memStore is an in-memory Store. A transaction holds the store lock for its
// whole duration and restores the previous state when fn fails.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.Session
	perfs    map[uuid.UUID]models.ExercisePerformance
	records  map[uuid.UUID]map[int]models.SetRecord

	// failOn makes the named query return the error.
	failOn  string
	failErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uuid.UUID]models.Session{},
		perfs:    map[uuid.UUID]models.ExercisePerformance{},
		records:  map[uuid.UUID]map[int]models.SetRecord{},
	}
}

var _ Store = (*memStore)(nil)

func (m *memStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := maps.Clone(m.sessions)
	perfs := maps.Clone(m.perfs)
	records := make(map[uuid.UUID]map[int]models.SetRecord, len(m.records))
	for k, v := range m.records {
		records[k] = maps.Clone(v)
	}

	if err := fn(memQueries{m}); err != nil {
		m.sessions, m.perfs, m.records = sessions, perfs, records
		return err
	}
	return nil
}

func (m *memStore) InReadTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memQueries{m})
}

func (m *memStore) locked(fn func(q memQueries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memQueries{m})
}

func (m *memStore) FindSessionID(ctx context.Context, key StartKey) (id uuid.UUID, err error) {
	err = m.locked(func(q memQueries) error { id, err = q.FindSessionID(ctx, key); return err })
	return id, err
}

func (m *memStore) InsertSession(ctx context.Context, s *models.Session) error {
	return m.locked(func(q memQueries) error { return q.InsertSession(ctx, s) })
}

func (m *memStore) GetSession(ctx context.Context, id uuid.UUID, userID string) (s *models.Session, err error) {
	err = m.locked(func(q memQueries) error { s, err = q.GetSession(ctx, id, userID); return err })
	return s, err
}

func (m *memStore) LockSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error) {
	return m.GetSession(ctx, id, userID)
}

func (m *memStore) UpdateSessionState(ctx context.Context, s *models.Session) error {
	return m.locked(func(q memQueries) error { return q.UpdateSessionState(ctx, s) })
}

func (m *memStore) UpdateSessionPlan(ctx context.Context, id uuid.UUID, plan models.Plan) error {
	return m.locked(func(q memQueries) error { return q.UpdateSessionPlan(ctx, id, plan) })
}

func (m *memStore) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	return m.locked(func(q memQueries) error { return q.DeleteSession(ctx, id, userID) })
}

func (m *memStore) LockPerformance(ctx context.Context, sessionID uuid.UUID, orderIndex int) (p *models.ExercisePerformance, err error) {
	err = m.locked(func(q memQueries) error { p, err = q.LockPerformance(ctx, sessionID, orderIndex); return err })
	return p, err
}

func (m *memStore) InsertPerformance(ctx context.Context, p *models.ExercisePerformance) error {
	return m.locked(func(q memQueries) error { return q.InsertPerformance(ctx, p) })
}

func (m *memStore) UpdatePerformanceExercise(ctx context.Context, id uuid.UUID, ex models.ExerciseDescriptor) error {
	return m.locked(func(q memQueries) error { return q.UpdatePerformanceExercise(ctx, id, ex) })
}

func (m *memStore) ListPerformances(ctx context.Context, sessionID uuid.UUID) (ps []models.ExercisePerformance, err error) {
	err = m.locked(func(q memQueries) error { ps, err = q.ListPerformances(ctx, sessionID); return err })
	return ps, err
}

func (m *memStore) DeletePerformances(ctx context.Context, sessionID uuid.UUID) error {
	return m.locked(func(q memQueries) error { return q.DeletePerformances(ctx, sessionID) })
}

func (m *memStore) UpsertSetRecord(ctx context.Context, r models.SetRecord) error {
	return m.locked(func(q memQueries) error { return q.UpsertSetRecord(ctx, r) })
}

func (m *memStore) ListSetRecords(ctx context.Context, performanceID uuid.UUID) (rs []models.SetRecord, err error) {
	err = m.locked(func(q memQueries) error { rs, err = q.ListSetRecords(ctx, performanceID); return err })
	return rs, err
}

func (m *memStore) ListSessionSetRecords(ctx context.Context, sessionID uuid.UUID) (rs []models.SetRecord, err error) {
	err = m.locked(func(q memQueries) error { rs, err = q.ListSessionSetRecords(ctx, sessionID); return err })
	return rs, err
}

func (m *memStore) SaveSetsSnapshot(ctx context.Context, performanceID uuid.UUID, snap models.SetsSnapshot) error {
	return m.locked(func(q memQueries) error { return q.SaveSetsSnapshot(ctx, performanceID, snap) })
}

// setCount returns the number of set records across all performances.
func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rs := range m.records {
		n += len(rs)
	}
	return n
}

// memQueries runs queries against a memStore whose lock is already held.
type memQueries struct {
	m *memStore
}

func (q memQueries) fail(name string) error {
	if q.m.failOn == name {
		return q.m.failErr
	}
	return nil
}

func cloneSession(s models.Session) *models.Session {
	s.Plan.Slots = slices.Clone(s.Plan.Slots)
	return &s
}

func sameInstance(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (q memQueries) FindSessionID(_ context.Context, key StartKey) (uuid.UUID, error) {
	if err := q.fail("FindSessionID"); err != nil {
		return uuid.Nil, err
	}
	for _, s := range q.m.sessions {
		if s.UserID == key.UserID && s.ProgramID == key.ProgramID && s.DayID == key.DayID &&
			sameInstance(s.ProgramInstanceID, key.ProgramInstanceID) {
			return s.ID, nil
		}
	}
	return uuid.Nil, ErrNotFound
}

func (q memQueries) InsertSession(ctx context.Context, s *models.Session) error {
	if err := q.fail("InsertSession"); err != nil {
		return err
	}
	key := StartKey{UserID: s.UserID, ProgramID: s.ProgramID, DayID: s.DayID, ProgramInstanceID: s.ProgramInstanceID}
	if _, err := q.FindSessionID(ctx, key); err == nil {
		return ErrConflict
	}
	q.m.sessions[s.ID] = *cloneSession(*s)
	return nil
}

func (q memQueries) GetSession(_ context.Context, id uuid.UUID, userID string) (*models.Session, error) {
	if err := q.fail("GetSession"); err != nil {
		return nil, err
	}
	s, ok := q.m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (q memQueries) LockSession(ctx context.Context, id uuid.UUID, userID string) (*models.Session, error) {
	return q.GetSession(ctx, id, userID)
}

func (q memQueries) UpdateSessionState(_ context.Context, s *models.Session) error {
	if err := q.fail("UpdateSessionState"); err != nil {
		return err
	}
	cur, ok := q.m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	plan := cur.Plan
	cur = *cloneSession(*s)
	cur.Plan = plan
	q.m.sessions[s.ID] = cur
	return nil
}

func (q memQueries) UpdateSessionPlan(_ context.Context, id uuid.UUID, plan models.Plan) error {
	if err := q.fail("UpdateSessionPlan"); err != nil {
		return err
	}
	cur, ok := q.m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	plan.Slots = slices.Clone(plan.Slots)
	cur.Plan = plan
	q.m.sessions[id] = cur
	return nil
}

func (q memQueries) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	if _, err := q.GetSession(ctx, id, userID); err != nil {
		return err
	}
	if err := q.DeletePerformances(ctx, id); err != nil {
		return err
	}
	delete(q.m.sessions, id)
	return nil
}

func (q memQueries) LockPerformance(_ context.Context, sessionID uuid.UUID, orderIndex int) (*models.ExercisePerformance, error) {
	if err := q.fail("LockPerformance"); err != nil {
		return nil, err
	}
	for _, p := range q.m.perfs {
		if p.SessionID == sessionID && p.OrderIndex == orderIndex {
			p.Sets.Sets = slices.Clone(p.Sets.Sets)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (q memQueries) InsertPerformance(ctx context.Context, p *models.ExercisePerformance) error {
	if err := q.fail("InsertPerformance"); err != nil {
		return err
	}
	if _, err := q.LockPerformance(ctx, p.SessionID, p.OrderIndex); err == nil {
		return ErrConflict
	}
	q.m.perfs[p.ID] = *p
	return nil
}

func (q memQueries) UpdatePerformanceExercise(_ context.Context, id uuid.UUID, ex models.ExerciseDescriptor) error {
	p, ok := q.m.perfs[id]
	if !ok {
		return ErrNotFound
	}
	p.Exercise = ex
	q.m.perfs[id] = p
	return nil
}

func (q memQueries) ListPerformances(_ context.Context, sessionID uuid.UUID) ([]models.ExercisePerformance, error) {
	if err := q.fail("ListPerformances"); err != nil {
		return nil, err
	}
	var out []models.ExercisePerformance
	for _, p := range q.m.perfs {
		if p.SessionID == sessionID {
			p.Sets.Sets = slices.Clone(p.Sets.Sets)
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.ExercisePerformance) int { return a.OrderIndex - b.OrderIndex })
	return out, nil
}

func (q memQueries) DeletePerformances(_ context.Context, sessionID uuid.UUID) error {
	for id, p := range q.m.perfs {
		if p.SessionID == sessionID {
			delete(q.m.perfs, id)
			delete(q.m.records, id)
		}
	}
	return nil
}

func (q memQueries) UpsertSetRecord(_ context.Context, r models.SetRecord) error {
	if err := q.fail("UpsertSetRecord"); err != nil {
		return err
	}
	if _, ok := q.m.perfs[r.PerformanceID]; !ok {
		return ErrNotFound
	}
	if q.m.records[r.PerformanceID] == nil {
		q.m.records[r.PerformanceID] = map[int]models.SetRecord{}
	}
	q.m.records[r.PerformanceID][r.SetNumber] = r
	return nil
}

func (q memQueries) ListSetRecords(_ context.Context, performanceID uuid.UUID) ([]models.SetRecord, error) {
	out := slices.Collect(maps.Values(q.m.records[performanceID]))
	slices.SortFunc(out, func(a, b models.SetRecord) int { return a.SetNumber - b.SetNumber })
	return out, nil
}

func (q memQueries) ListSessionSetRecords(ctx context.Context, sessionID uuid.UUID) ([]models.SetRecord, error) {
	var out []models.SetRecord
	for id, p := range q.m.perfs {
		if p.SessionID != sessionID {
			continue
		}
		rs, _ := q.ListSetRecords(ctx, id)
		out = append(out, rs...)
	}
	return out, nil
}

func (q memQueries) SaveSetsSnapshot(_ context.Context, performanceID uuid.UUID, snap models.SetsSnapshot) error {
	if err := q.fail("SaveSetsSnapshot"); err != nil {
		return err
	}
	p, ok := q.m.perfs[performanceID]
	if !ok {
		return ErrNotFound
	}
	p.Sets = snap
	q.m.perfs[performanceID] = p
	return nil
}

// memCatalog is a fixed catalog.
type memCatalog struct {
	days      map[string]models.DayPlan
	exercises map[string]models.ExerciseDescriptor
}

func (c *memCatalog) DayPlan(_ context.Context, programID, dayID string) (*models.DayPlan, error) {
	d, ok := c.days[programID+"/"+dayID]
	if !ok {
		return nil, ErrNotFound
	}
	d.Exercises = slices.Clone(d.Exercises)
	return &d, nil
}

func (c *memCatalog) Exercise(_ context.Context, exerciseID string) (*models.ExerciseDescriptor, error) {
	ex, ok := c.exercises[exerciseID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ex, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
