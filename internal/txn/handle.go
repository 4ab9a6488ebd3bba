package txn

import "context"

// Row is the subset of a single-row query result the core needs.
// Concrete connection handles (internal/dbconn) adapt their driver's row
// type to this so txn never imports a driver package directly.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the subset of a multi-row query result the core needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag reports how many rows a statement affected.
type CommandTag interface {
	RowsAffected() int64
}

// ConnectionHandle is a thin wrapper over a pooled database connection.
// It is opaque to the repository layer except as the parameter passed
// into the with_transaction callback: callers use Query/QueryRow/Exec
// for their own DML. The session-control methods (Begin/Savepoint/
// Release/RollbackTo/Commit/Rollback) exist so WithTransaction can drive
// the handle from the txn package without importing a driver; a
// callback that calls them directly voids the executor's bookkeeping
// and is a misuse of the API, not a supported escape hatch.
type ConnectionHandle interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)

	Begin(ctx context.Context, level IsolationLevel) error
	Savepoint(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool checks out an exclusive ConnectionHandle for the lifetime of an
// outermost transaction. The returned release func must be called
// exactly once, after the handle is no longer in use.
type Pool interface {
	Acquire(ctx context.Context) (ConnectionHandle, func(), error)
}
