package txn

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Observer receives outermost-transaction outcomes for instrumentation
// (internal/dbconn.Metrics implements this). It is optional: a nil
// Observer on Manager simply skips the call.
type Observer interface {
	ObserveTransaction(outcome string, d time.Duration)
}

// Options configures a single WithTransaction call.
type Options struct {
	// Serializable requests SSI for an outermost call. It is ignored
	// (documented, not silently dropped) when the call is nested and
	// the outer transaction already requested it, and it is a
	// programming error when the outer transaction did not.
	Serializable bool
}

// Option mutates Options; WithTransaction accepts a set of them so call
// sites read like txn.WithTransaction(ctx, m, fn, txn.WithSerializable()).
type Option func(*Options)

// WithSerializable requests SSI for this (outermost) transaction.
func WithSerializable() Option {
	return func(o *Options) { o.Serializable = true }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Manager decides whether a WithTransaction call opens a new physical
// transaction or a nested savepoint, and drives commit/rollback/release
// accordingly.
type Manager struct {
	pool     Pool
	logger   *zap.Logger
	observer Observer
}

// NewManager constructs a Manager bound to a connection pool. logger may
// be nil, in which case a no-op logger is used.
func NewManager(pool Pool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{pool: pool, logger: logger}
}

// WithObserver attaches an Observer that records the outcome and
// duration of every outermost transaction. Nested calls never observe,
// since only the outermost call owns the physical commit.
func (m *Manager) WithObserver(o Observer) *Manager {
	m.observer = o
	return m
}

// WithTransaction runs fn under a logical transaction that may nest
// arbitrarily. The outermost call owns the physical BEGIN/COMMIT; nested
// calls are emulated with savepoints on the same session.
func WithTransaction[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, ch ConnectionHandle) (T, error), opts ...Option) (T, error) {
	options := buildOptions(opts)

	if tc, ok := fromContext(ctx); ok {
		return withNested(ctx, tc, fn, options)
	}
	return withOutermost(ctx, m, fn, options)
}

func withOutermost[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, ch ConnectionHandle) (T, error), options Options) (T, error) {
	var zero T

	ch, release, err := m.pool.Acquire(ctx)
	if err != nil {
		return zero, ClassifyError(err)
	}

	level := Default
	if options.Serializable {
		level = Serializable
	}

	if err := ch.Begin(ctx, level); err != nil {
		release()
		return zero, ClassifyError(err)
	}

	tc := &txContext{handle: ch, release: release, logger: m.logger, level: level}
	tcCtx := withContext(ctx, tc)
	started := time.Now()
	observe := func(outcome string) {
		if m.observer != nil {
			m.observer.ObserveTransaction(outcome, time.Since(started))
		}
	}

	result, cbErr := runCallback(tcCtx, ch, fn, func() {
		if rbErr := ch.Rollback(tcCtx); rbErr != nil {
			m.logger.Warn("rollback after panic failed", zap.Error(rbErr))
		}
		tc.pcq.entries = nil
		release()
		observe("rolled_back")
	})
	if cbErr != nil {
		classified := ClassifyError(cbErr)
		if rbErr := ch.Rollback(tcCtx); rbErr != nil {
			m.logger.Warn("rollback failed", zap.Error(rbErr), zap.Error(classified))
		}
		tc.pcq.entries = nil
		release()
		observe("rolled_back")
		return zero, classified
	}

	// Once the session is aborted, every outer frame's commit attempt
	// converts to rollback, even if the callback itself returned no error.
	if tc.aborted {
		if rbErr := ch.Rollback(tcCtx); rbErr != nil {
			m.logger.Warn("rollback of aborted transaction failed", zap.Error(rbErr))
		}
		tc.pcq.entries = nil
		release()
		observe("rolled_back")
		return zero, ErrTransactionAborted
	}

	if err := ch.Commit(tcCtx); err != nil {
		classified := ClassifyError(err)
		tc.pcq.entries = nil
		release()
		observe("rolled_back")
		return zero, classified
	}

	tc.pcq.drain(m.logger)
	release()
	observe("committed")
	return result, nil
}

func withNested[T any](ctx context.Context, tc *txContext, fn func(ctx context.Context, ch ConnectionHandle) (T, error), options Options) (T, error) {
	var zero T

	if tc.aborted {
		return zero, ErrTransactionAborted
	}
	if options.Serializable && tc.level != Serializable {
		return zero, ErrSerializableNestingMismatch
	}

	depth := tc.depth + 1
	name := tc.nextSavepointName()

	if err := tc.handle.Savepoint(ctx, name); err != nil {
		classified := ClassifyError(err)
		if errors.Is(classified, ErrTransactionAborted) {
			tc.aborted = true
		}
		return zero, classified
	}

	frame := savepointFrame{name: name, depth: depth, postCommitStart: len(tc.pcq.entries)}
	tc.frames = append(tc.frames, frame)
	tc.depth = depth

	popFrame := func() {
		tc.frames = tc.frames[:len(tc.frames)-1]
		tc.depth = depth - 1
	}

	result, cbErr := runCallback(ctx, tc.handle, fn, func() {
		if rbErr := tc.handle.RollbackTo(ctx, name); rbErr != nil {
			tc.logger.Warn("nested rollback-to-savepoint after panic failed", zap.String("savepoint", name), zap.Error(rbErr))
		}
		if relErr := tc.handle.Release(ctx, name); relErr != nil {
			tc.logger.Warn("release after panicked rollback failed", zap.String("savepoint", name), zap.Error(relErr))
		}
		tc.pcq.truncate(frame.postCommitStart)
		popFrame()
	})
	if cbErr != nil {
		classified := ClassifyError(cbErr)
		if errors.Is(classified, ErrTransactionAborted) {
			tc.aborted = true
		}
		// The database may refuse ROLLBACK TO once already aborted; the
		// executor tolerates that and keeps unwinding.
		if rbErr := tc.handle.RollbackTo(ctx, name); rbErr != nil {
			tc.logger.Warn("rollback to savepoint failed", zap.String("savepoint", name), zap.Error(rbErr))
		}
		if relErr := tc.handle.Release(ctx, name); relErr != nil {
			tc.logger.Warn("release savepoint after rollback failed", zap.String("savepoint", name), zap.Error(relErr))
		}
		tc.pcq.truncate(frame.postCommitStart)
		popFrame()
		return zero, classified
	}

	if err := tc.handle.Release(ctx, name); err != nil {
		classified := ClassifyError(err)
		if errors.Is(classified, ErrTransactionAborted) {
			tc.aborted = true
		}
		tc.pcq.truncate(frame.postCommitStart)
		popFrame()
		return zero, classified
	}

	popFrame()
	return result, nil
}

// runCallback invokes fn, converting a panic into a best-effort cleanup
// (via onPanic) followed by re-panicking.
func runCallback[T any](ctx context.Context, ch ConnectionHandle, fn func(ctx context.Context, ch ConnectionHandle) (T, error), onPanic func()) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			onPanic()
			panic(r)
		}
	}()
	return fn(ctx, ch)
}

// PostCommit enqueues fn to run after the outermost transaction durably
// commits. It requires a live transaction in ctx; fn receives no database
// handle because the transaction is closed by the time it runs.
func PostCommit(ctx context.Context, fn func() error) error {
	tc, ok := fromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if tc.aborted {
		return ErrTransactionAborted
	}
	tc.pcq.register(fn, tc.depth)
	return nil
}
