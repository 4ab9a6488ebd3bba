package txn

import (
	"context"

	"go.uber.org/zap"
)

// ctxKey is unexported so no other package can collide with it.
type ctxKey struct{}

// txContext is the per-logical-transaction state. Exactly one exists per
// outermost WithTransaction call for the lifetime of its connection
// checkout; nested calls share the same *txContext and only push a
// savepointFrame onto its stack.
type txContext struct {
	handle    ConnectionHandle
	release   func() // returns the connection handle to the pool
	logger    *zap.Logger
	level     IsolationLevel
	frames    []savepointFrame // depth 0 = outermost, never pushed as a frame itself
	depth     int              // len(frames); 0 at outermost
	spCounter int              // monotonically increasing; savepoint names are never reused
	pcq       postCommitQueue
	aborted   bool
}

func (tc *txContext) currentDepth() int {
	return tc.depth
}

// fromContext retrieves the active txContext, if any.
func fromContext(ctx context.Context) (*txContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*txContext)
	return tc, ok
}

// withContext returns a new context carrying tc, surviving every
// suspension point downstream because it rides the context.Context chain
// like any other request-scoped value.
func withContext(ctx context.Context, tc *txContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext exposes whether a transaction is active, for code that
// wants to branch on it (e.g. hooks that only wrap themselves in a
// transaction when one isn't already present).
func FromContext(ctx context.Context) (active bool) {
	_, ok := fromContext(ctx)
	return ok
}
