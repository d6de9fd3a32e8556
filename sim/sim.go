// Package sim drives reader and writer workers against a selectable lock
// policy and records the admission trace, for demonstrating how the
// policies behave under contention.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/rwlock/lock"
	"github.com/projecteru2/rwlock/types"
)

// Options configures a simulation run.
type Options struct {
	Policy  lock.Policy
	Readers int
	Writers int
	// Iterations is the number of acquisitions every worker performs.
	Iterations int
	// MaxJitter bounds the random pause before each acquisition attempt.
	MaxJitter time.Duration
	// MaxReadHold and MaxWriteHold bound the simulated work performed
	// inside the critical section.
	MaxReadHold  time.Duration
	MaxWriteHold time.Duration
	// Seed makes worker timing reproducible; 0 picks a time-based seed.
	Seed int64
	// MaxWaiters bounds the fair lock's waiter queue; 0 means unbounded.
	MaxWaiters int
	// Clock is the time source for delays and wait measurement; nil uses
	// the real clock.
	Clock clockwork.Clock
}

func (o Options) normalized() Options {
	if o.Readers < 0 {
		o.Readers = 0
	}
	if o.Writers < 0 {
		o.Writers = 0
	}
	if o.Iterations <= 0 {
		o.Iterations = 1
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// state is the protected resource: writers append values, readers
// inspect the latest one. It is guarded solely by the lock under test.
type state struct {
	buffer []int
}

// Run executes the configured workload and returns its report.
func Run(ctx context.Context, opts Options) (*types.RunReport, error) {
	opts = opts.normalized()
	if opts.Readers+opts.Writers == 0 {
		return nil, fmt.Errorf("no workers configured")
	}
	locker, err := lock.New(opts.Policy, lock.WithMaxWaiters(opts.MaxWaiters))
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	logger := log.WithFunc("sim.Run")
	logger.Infof(ctx, "starting %s run: %d readers, %d writers, %d iterations each",
		opts.Policy, opts.Readers, opts.Writers, opts.Iterations)

	col := &collector{}
	st := &state{}
	started := opts.Clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Readers; i++ {
		w := opts.newWorker(fmt.Sprintf("reader-%02d", i), types.KindReader, int64(i), locker, col, st)
		g.Go(func() error { return w.run(gctx) })
	}
	for i := 0; i < opts.Writers; i++ {
		w := opts.newWorker(fmt.Sprintf("writer-%02d", i), types.KindWriter, int64(1000+i), locker, col, st)
		g.Go(func() error { return w.run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats, trace := col.snapshot()
	report := &types.RunReport{
		ID:         uuid.NewString(),
		Policy:     string(opts.Policy),
		StartedAt:  started,
		Duration:   opts.Clock.Since(started),
		Readers:    opts.Readers,
		Writers:    opts.Writers,
		Iterations: opts.Iterations,
		Seed:       opts.Seed,
		Stats:      stats,
		Trace:      trace,
	}
	logger.Infof(ctx, "run %s finished in %s with %d admissions",
		report.ID, report.Duration, len(trace))
	return report, nil
}

// newWorker derives a per-worker RNG from the run seed so runs are
// reproducible without sharing a rand source across goroutines.
func (o Options) newWorker(name string, kind types.Kind, salt int64, locker lock.RWLocker, col *collector, st *state) *worker {
	maxHold := o.MaxReadHold
	if kind == types.KindWriter {
		maxHold = o.MaxWriteHold
	}
	return &worker{
		name:    name,
		kind:    kind,
		locker:  locker,
		clk:     o.Clock,
		rng:     rand.New(rand.NewSource(o.Seed + salt)),
		iters:   o.Iterations,
		jitter:  o.MaxJitter,
		maxHold: maxHold,
		col:     col,
		st:      st,
	}
}

type worker struct {
	name    string
	kind    types.Kind
	locker  lock.RWLocker
	clk     clockwork.Clock
	rng     *rand.Rand
	iters   int
	jitter  time.Duration
	maxHold time.Duration
	col     *collector
	st      *state
}

func (w *worker) run(ctx context.Context) error {
	logger := log.WithFunc("sim.worker")
	for i := 0; i < w.iters; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.clk.Sleep(w.randDelay(w.jitter))
		logger.Debugf(ctx, "%s waiting", w.name)

		start := w.clk.Now()
		var err error
		if w.kind == types.KindWriter {
			err = lock.WithWrite(w.locker, func() error {
				waited := w.clk.Since(start)
				value := w.rng.Intn(100) + 1
				w.st.buffer = append(w.st.buffer, value)
				logger.Infof(ctx, "%s wrote %d after waiting %s", w.name, value, waited)
				held := w.randDelay(w.maxHold)
				w.clk.Sleep(held)
				w.col.record(w.name, w.kind, waited, held)
				return nil
			})
		} else {
			err = lock.WithRead(w.locker, func() error {
				waited := w.clk.Since(start)
				last := 0
				if n := len(w.st.buffer); n > 0 {
					last = w.st.buffer[n-1]
				}
				logger.Infof(ctx, "%s read %d after waiting %s", w.name, last, waited)
				held := w.randDelay(w.maxHold)
				w.clk.Sleep(held)
				w.col.record(w.name, w.kind, waited, held)
				return nil
			})
		}
		if err != nil {
			return fmt.Errorf("%s: %w", w.name, err)
		}
	}
	return nil
}

func (w *worker) randDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(w.rng.Int63n(int64(max) + 1))
}
