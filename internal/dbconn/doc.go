// Package dbconn provides the Connection Handle implementations consumed
// by internal/txn. PgxHandle is the production implementation backed by
// jackc/pgx's pool; SQLHandle adapts any database/sql driver (sqlite3 for
// integration tests, go-sqlmock for exact SQL-sequence assertions, lib/pq
// as an alternate production driver) to the same txn.ConnectionHandle
// interface so the executor's tests don't need a live PostgreSQL server.
package dbconn
