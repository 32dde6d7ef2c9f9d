// Package workout is the workout session engine: the session lifecycle state
// machine, the idempotent set ledger, exercise substitution and the snapshot
// read model that rebuilds a session view without touching set-level rows.
package workout

import (
	"context"
	"log/slog"
	"time"
)

// Recorder observes engine operations. *metrics.Manager satisfies it.
type Recorder interface {
	RecordOp(op string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordOp(string, time.Duration, error) {}

// Engine runs every session operation against a Store, denormalizing exercise
// data from a Catalog.
type Engine struct {
	store   Store
	catalog Catalog
	log     *slog.Logger
	now     func() time.Time
	rec     Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder attaches an operation recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// New creates an Engine.
func New(store Store, catalog Catalog, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		catalog: catalog,
		log:     log,
		now:     time.Now,
		rec:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clock returns the current time truncated to microseconds, the resolution
// Postgres keeps for timestamptz.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) observe(ctx context.Context, op string, start time.Time, err error) {
	e.rec.RecordOp(op, time.Since(start), err)
	if err != nil {
		e.log.WarnContext(ctx, "workout op failed", "op", op, "kind", Kind(err), "error", err)
	}
}
