// Package proc runs procedures: functions that read and write records
// inside a transaction, with locking, redo and timeouts around them.
package proc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/beanstore/pkg/txn"
)

var (
	// ErrRedo asks the runner to roll back and run the procedure again.
	ErrRedo          = errors.New("procedure redo requested")
	ErrRedoExhausted = errors.New("procedure redo limit reached")
	ErrTimeout       = errors.New("procedure timed out")
)

// PanicError is returned when a procedure panics.
type PanicError struct {
	Reason any
	Stack  string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.Reason, p.Stack)
}

// Func is the body of a procedure. It must do all record access through tx.
type Func func(ctx context.Context, tx *txn.Txn) error

type Options struct {
	MaxRedo     int           // attempts after the first; default 5
	MaxDuration time.Duration // 0 disables the timeout
	LockStripes int           // default 1024
	Logger      *slog.Logger
	Sink        txn.ErrorSink
	Registerer  prometheus.Registerer // nil disables metrics
}

const (
	DefaultMaxRedo     = 5
	DefaultLockStripes = 1024
)

// Runner executes procedures. It is safe for concurrent use.
//
// A corrupt rollback journal stops the runner: every later Run fails with
// the same error and Failed is closed.
type Runner struct {
	opts    Options
	locks   *LockPool
	metrics *metrics

	failure  atomic.Pointer[error]
	failOnce sync.Once
	failed   chan struct{}
}

func NewRunner(opts Options) *Runner {
	if opts.MaxRedo <= 0 {
		opts.MaxRedo = DefaultMaxRedo
	}
	if opts.LockStripes <= 0 {
		opts.LockStripes = DefaultLockStripes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = txn.LogSink{Logger: opts.Logger}
	}
	return &Runner{
		opts:    opts,
		locks:   NewLockPool(opts.LockStripes),
		metrics: newMetrics(opts.Registerer),
		failed:  make(chan struct{}),
	}
}

// Err returns the error that stopped the runner, or nil.
func (r *Runner) Err() error {
	if p := r.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Failed is closed once the runner has stopped.
func (r *Runner) Failed() <-chan struct{} {
	return r.failed
}

func (r *Runner) fail(err error) {
	r.failOnce.Do(func() {
		r.failure.Store(&err)
		close(r.failed)
	})
}

func (r *Runner) Locks() *LockPool {
	return r.locks
}

type runConfig struct {
	locks []string
}

type RunOption func(*runConfig)

// WithLocks holds the given lock ids for the whole procedure, redo
// attempts included.
func WithLocks(ids ...string) RunOption {
	return func(c *runConfig) {
		c.locks = append(c.locks, ids...)
	}
}

// Run executes fn in a fresh transaction. A nil result commits; any other
// result rolls back. ErrRedo from fn, or from a failed commit, retries up
// to MaxRedo times.
func (r *Runner) Run(ctx context.Context, name string, fn Func, opts ...RunOption) error {
	var cfg runConfig
	for _, o := range opts {
		o(&cfg)
	}

	if err := r.Err(); err != nil {
		r.metrics.outcome(name, outcomeRefused)
		return fmt.Errorf("%s: runner stopped: %w", name, err)
	}

	start := time.Now()
	defer func() { r.metrics.observe(name, time.Since(start).Seconds()) }()

	if len(cfg.locks) > 0 {
		unlock := r.locks.Lock(cfg.locks...)
		defer unlock()
	}

	if r.opts.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.MaxDuration)
		defer cancel()
	}

	logger := r.opts.Logger.With("procedure", name)
	for attempt := 0; ; attempt++ {
		tx := txn.Begin(txn.Options{Logger: logger, Sink: r.opts.Sink})
		err := safelyCall(ctx, fn, tx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err == nil {
			if err = tx.Commit(); err == nil {
				r.metrics.outcome(name, outcomeCommitted)
				return nil
			}
		} else if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}

		var pe *PanicError
		switch {
		case errors.Is(err, txn.ErrCorruptJournal):
			r.metrics.outcome(name, outcomeCorrupt)
			err = fmt.Errorf("%s: %w", name, err)
			logger.Error("procedure left a corrupt journal, stopping runner", "txn", tx.ID(), "err", err)
			r.opts.Sink.HandleError(tx.ID(), err)
			r.fail(err)
			return err
		case errors.As(err, &pe):
			r.metrics.outcome(name, outcomePanic)
			logger.Error("procedure panicked", "txn", tx.ID(), "reason", pe.Reason)
			r.opts.Sink.HandleError(tx.ID(), err)
			return fmt.Errorf("%s: %w", name, err)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			r.metrics.outcome(name, outcomeTimeout)
			err = fmt.Errorf("%s: %w: %w", name, ErrTimeout, err)
			r.opts.Sink.HandleError(tx.ID(), err)
			return err
		case errors.Is(err, ErrRedo):
			r.metrics.outcome(name, outcomeRedo)
			if attempt >= r.opts.MaxRedo {
				err = fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRedoExhausted, attempt+1, err)
				r.opts.Sink.HandleError(tx.ID(), err)
				return err
			}
			logger.Debug("procedure redo", "txn", tx.ID(), "attempt", attempt+1)
			continue
		default:
			r.metrics.outcome(name, outcomeRolledBack)
			return err
		}
	}
}

func safelyCall(ctx context.Context, fn Func, tx *txn.Txn) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Reason: p, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx, tx)
}
