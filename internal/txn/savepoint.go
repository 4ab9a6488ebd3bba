package txn

import "fmt"

// savepointFrame is one nested WithTransaction call represented as a
// named savepoint on the shared connection handle. Frames form a strict
// LIFO stack; a child frame cannot outlive its parent.
type savepointFrame struct {
	name            string
	depth           int
	postCommitStart int // index into the outermost TC's post-commit queue at frame entry
}

// nextSavepointName advances the TC's savepoint counter and returns the
// new frame's name. The counter never resets while the TC is live, so a
// name is never reused even after its savepoint is released; each
// outermost transaction gets a fresh TC and starts over at sp1.
func (tc *txContext) nextSavepointName() string {
	tc.spCounter++
	return fmt.Sprintf("sp%d", tc.spCounter)
}
