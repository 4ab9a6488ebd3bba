// Package txn implements the nested transactional execution layer that
// sits between the resource repository and the database connection.
//
// It reconciles three things at once: Go's goroutine-per-request model,
// the physical session's strict BEGIN/SAVEPOINT/RELEASE/ROLLBACK TO state
// machine, and post-commit side effects that must fire only once the
// outermost transaction durably commits.
//
// Callers never construct a transaction context themselves; WithTransaction manages
// the whole lifecycle and hands the callback a ConnectionHandle.
package txn
