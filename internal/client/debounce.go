package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/workout"
	"go.uber.org/multierr"
)

// DefaultDebounceDelay is how long a set edit waits for a newer edit of the
// same set before it is sent.
const DefaultDebounceDelay = 500 * time.Millisecond

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("debouncer closed")

// SendFunc delivers one set write. (*Client).UpsertSet satisfies it.
type SendFunc func(ctx context.Context, in workout.SetInput) error

// SetKey identifies one set of one session.
type SetKey struct {
	SessionID  uuid.UUID
	OrderIndex int
	SetNumber  int
}

func keyOf(in workout.SetInput) SetKey {
	return SetKey{SessionID: in.SessionID, OrderIndex: in.OrderIndex, SetNumber: in.SetNumber}
}

type pendingSet struct {
	latest   workout.SetInput
	hasValue bool
	sending  bool
	timer    *time.Timer
}

// Debouncer coalesces rapid edits of the same set. Each key has one timer
// that is restarted by every edit; when it fires only the latest value is
// sent. Sends for one key never overlap: an edit arriving mid-send is held
// and sent after the in-flight write returns.
type Debouncer struct {
	send     SendFunc
	delay    time.Duration
	log      *slog.Logger
	onError  func(workout.SetInput, error)
	failures *FailureLog

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[SetKey]*pendingSet
	inflight int
	closed   bool
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithDelay overrides DefaultDebounceDelay.
func WithDelay(d time.Duration) DebounceOption {
	return func(db *Debouncer) { db.delay = d }
}

// WithOnError registers a callback for writes that failed. It runs on the
// sending goroutine.
func WithOnError(fn func(workout.SetInput, error)) DebounceOption {
	return func(db *Debouncer) { db.onError = fn }
}

// WithFailureLog records failed writes, and clears them when a later write
// of the same set succeeds.
func WithFailureLog(f *FailureLog) DebounceOption {
	return func(db *Debouncer) { db.failures = f }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) DebounceOption {
	return func(db *Debouncer) { db.log = log }
}

// NewDebouncer creates a Debouncer delivering through send.
func NewDebouncer(send SendFunc, opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		send:    send,
		delay:   DefaultDebounceDelay,
		log:     slog.Default(),
		pending: make(map[SetKey]*pendingSet),
	}
	d.idle = sync.NewCond(&d.mu)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit buffers a set edit, superseding any unsent edit of the same set.
func (d *Debouncer) Submit(in workout.SetInput) error {
	key := keyOf(in)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	p, ok := d.pending[key]
	if !ok {
		p = &pendingSet{}
		p.timer = time.AfterFunc(d.delay, func() { d.fire(key) })
		d.pending[key] = p
	} else if !p.sending {
		p.timer.Reset(d.delay)
	}
	p.latest = in
	p.hasValue = true
	return nil
}

// Pending returns the number of sets with an unsent or in-flight write.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) fire(key SetKey) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.sending || !p.hasValue {
		d.mu.Unlock()
		return
	}
	in := d.takeLocked(p)
	d.mu.Unlock()

	_ = d.deliver(d.ctx, in)
	d.done(key)
}

// takeLocked moves the buffered value of p into flight.
func (d *Debouncer) takeLocked(p *pendingSet) workout.SetInput {
	p.timer.Stop()
	p.hasValue = false
	p.sending = true
	d.inflight++
	return p.latest
}

// done ends the in-flight write of key. A value buffered meanwhile gets a
// fresh timer unless the debouncer is closing, in which case Flush picks it up.
func (d *Debouncer) done(key SetKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.pending[key]
	p.sending = false
	d.inflight--
	switch {
	case !p.hasValue:
		delete(d.pending, key)
	case !d.closed:
		p.timer.Reset(d.delay)
	}
	d.idle.Broadcast()
}

func (d *Debouncer) deliver(ctx context.Context, in workout.SetInput) error {
	err := d.send(ctx, in)
	if err == nil {
		if d.failures != nil {
			if cerr := d.failures.Clear(ctx, in); cerr != nil {
				d.log.Warn("clearing failed set", "error", cerr)
			}
		}
		return nil
	}

	d.log.Warn("set write failed",
		"session", in.SessionID, "order_index", in.OrderIndex, "set_number", in.SetNumber,
		"kind", workout.Kind(err), "error", err)
	if d.failures != nil {
		if rerr := d.failures.Record(context.WithoutCancel(ctx), in, err); rerr != nil {
			d.log.Error("recording failed set", "error", rerr)
		}
	}
	if d.onError != nil {
		d.onError(in, err)
	}
	return fmt.Errorf("sending set %d at position %d: %w", in.SetNumber, in.OrderIndex, err)
}

// Flush sends every buffered edit now and waits for in-flight writes. It
// returns the combined errors of the writes it sent itself.
func (d *Debouncer) Flush(ctx context.Context) error {
	var errs error
	for {
		d.mu.Lock()
		var batch []workout.SetInput
		for _, p := range d.pending {
			if p.hasValue && !p.sending {
				batch = append(batch, d.takeLocked(p))
			}
		}
		if len(batch) == 0 {
			for d.inflight > 0 {
				d.idle.Wait()
			}
			more := false
			for _, p := range d.pending {
				more = more || p.hasValue
			}
			d.mu.Unlock()
			if !more {
				return errs
			}
			continue
		}
		d.mu.Unlock()

		for _, in := range batch {
			errs = multierr.Append(errs, d.deliver(ctx, in))
			d.done(keyOf(in))
		}
	}
}

// Close rejects further edits, flushes what is buffered and stops the timers.
func (d *Debouncer) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	err := d.Flush(ctx)
	d.cancel()
	return err
}
