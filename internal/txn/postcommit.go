package txn

import "go.uber.org/zap"

// postCommitEntry is one registration, tagged with the depth of the frame
// that registered it.
type postCommitEntry struct {
	fn    func() error
	depth int
}

// postCommitQueue is owned exclusively by the outermost txContext. Nested
// calls reuse that same *txContext, so they append to this one queue and
// are never given their own.
type postCommitQueue struct {
	entries []postCommitEntry
}

func (q *postCommitQueue) register(fn func() error, depth int) {
	q.entries = append(q.entries, postCommitEntry{fn: fn, depth: depth})
}

// truncate drops every entry registered at or after index n. A rolling-back
// frame truncates at the index recorded when the frame was entered: every
// later entry belongs to that frame or something nested inside it, while
// entries from already-released sibling frames sit below n and survive.
func (q *postCommitQueue) truncate(n int) {
	if n < len(q.entries) {
		q.entries = q.entries[:n]
	}
}

// drain runs every surviving callback FIFO, in registration order,
// exactly once. A callback panic or error is logged and does not stop
// the remaining callbacks or retroactively fail the already-committed
// transaction.
func (q *postCommitQueue) drain(logger *zap.Logger) {
	for i, e := range q.entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("post-commit callback panicked",
						zap.Int("index", i), zap.Int("depth", e.depth), zap.Any("recover", r))
				}
			}()
			if err := e.fn(); err != nil {
				logger.Warn("post-commit callback failed",
					zap.Int("index", i), zap.Int("depth", e.depth), zap.Error(err))
			}
		}()
	}
	q.entries = nil
}
