package dbconn

import (
	"context"
	"database/sql"

	"github.com/careset/fhirstore/internal/txn"
)

// SQLPool implements txn.Pool over a database/sql *sql.DB. database/sql
// already pools physical connections; Acquire here just hands out a fresh
// SQLHandle bound to that pool for the lifetime of one outermost
// transaction, without a second layer of pooling on top of what
// lib/pq/sqlite3/go-sqlmock already provide.
type SQLPool struct {
	db *sql.DB
}

var _ txn.Pool = (*SQLPool)(nil)

// NewSQLPool wraps an already-configured *sql.DB (sqlite3, lib/pq, or a
// go-sqlmock double).
func NewSQLPool(db *sql.DB) *SQLPool {
	return &SQLPool{db: db}
}

func (p *SQLPool) Acquire(ctx context.Context) (txn.ConnectionHandle, func(), error) {
	return NewSQLHandle(p.db), func() {}, nil
}
