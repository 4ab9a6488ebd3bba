package txn

import (
	"context"
	"errors"
	"fmt"
)

// fakeEngine is an in-memory stand-in for a PostgreSQL session, used to
// deterministically exercise the nested-savepoint state machine without
// a live database. It models just enough of Postgres's session semantics
// to be useful: a key/value table, a stack of savepoint snapshots, and
// an "aborted" flag that, once set, rejects every statement except
// ROLLBACK TO SAVEPOINT or a full Rollback, mirroring "current
// transaction is aborted, commands ignored until end of transaction
// block".
type fakeEngine struct {
	table     map[string]string
	snapshots []map[string]string
	names     []string
	aborted   bool
	open      bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{table: map[string]string{}}
}

var errRelationNotFound = errors.New("relation does not exist")

type fakeHandle struct {
	eng *fakeEngine
}

func (h *fakeHandle) snapshot() map[string]string {
	cp := make(map[string]string, len(h.eng.table))
	for k, v := range h.eng.table {
		cp[k] = v
	}
	return cp
}

func (h *fakeHandle) Begin(ctx context.Context, level IsolationLevel) error {
	if h.eng.open {
		return errors.New("fakeEngine: already open")
	}
	h.eng.open = true
	return nil
}

func (h *fakeHandle) Savepoint(ctx context.Context, name string) error {
	if h.eng.aborted {
		return ClassifyError(&DriverError{AbortedSession: true, Message: "current transaction is aborted, commands ignored until end of transaction block"})
	}
	h.eng.snapshots = append(h.eng.snapshots, h.snapshot())
	h.eng.names = append(h.eng.names, name)
	return nil
}

func (h *fakeHandle) Release(ctx context.Context, name string) error {
	if h.eng.aborted {
		return ClassifyError(&DriverError{AbortedSession: true, Message: "current transaction is aborted, commands ignored until end of transaction block"})
	}
	h.pop(name)
	return nil
}

func (h *fakeHandle) RollbackTo(ctx context.Context, name string) error {
	snapshots := h.eng.snapshots
	idx := h.pop(name)
	if idx < 0 {
		return fmt.Errorf("fakeEngine: no such savepoint %s", name)
	}
	h.eng.table = snapshots[idx]
	// Deliberately does NOT clear h.eng.aborted: the executor's policy
	// is stickier than raw Postgres, which would otherwise let statements
	// resume after ROLLBACK TO. Only a full Rollback ends the poisoned
	// session.
	return nil
}

func (h *fakeHandle) pop(name string) int {
	for i := len(h.eng.names) - 1; i >= 0; i-- {
		if h.eng.names[i] == name {
			h.eng.names = h.eng.names[:i]
			h.eng.snapshots = h.eng.snapshots[:i]
			return i
		}
	}
	return -1
}

func (h *fakeHandle) Commit(ctx context.Context) error {
	if h.eng.aborted {
		return ClassifyError(&DriverError{AbortedSession: true, Message: "current transaction is aborted"})
	}
	h.eng.open = false
	return nil
}

func (h *fakeHandle) Rollback(ctx context.Context) error {
	h.eng.open = false
	h.eng.aborted = false
	h.eng.table = map[string]string{}
	h.eng.snapshots = nil
	h.eng.names = nil
	return nil
}

func (h *fakeHandle) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return nil, errors.New("fakeEngine: Query not used by these tests")
}

func (h *fakeHandle) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return nil
}

// Exec simulates two statement shapes the tests need: "INSERT key value"
// writes to the table; "SELECT FROM TableDoesNotExist" aborts the session.
func (h *fakeHandle) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if h.eng.aborted {
		return nil, ClassifyError(&DriverError{AbortedSession: true, Message: "current transaction is aborted, commands ignored until end of transaction block"})
	}
	if sql == "SELECT FROM TableDoesNotExist" {
		h.eng.aborted = true
		return nil, errRelationNotFound
	}
	key, _ := args[0].(string)
	val, _ := args[1].(string)
	h.eng.table[key] = val
	return fakeCommandTag(1), nil
}

func (h *fakeHandle) get(key string) (string, bool) {
	v, ok := h.eng.table[key]
	return v, ok
}

type fakeCommandTag int64

func (t fakeCommandTag) RowsAffected() int64 { return int64(t) }

type fakePool struct {
	eng *fakeEngine
}

func newFakePool() *fakePool {
	return &fakePool{eng: newFakeEngine()}
}

func (p *fakePool) Acquire(ctx context.Context) (ConnectionHandle, func(), error) {
	return &fakeHandle{eng: p.eng}, func() {}, nil
}

var (
	_ ConnectionHandle = (*fakeHandle)(nil)
	_ Pool             = (*fakePool)(nil)
)
