package dbconn

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/careset/fhirstore/internal/txn"
)

// sqlRows adapts *sql.Rows to txn.Rows.
type sqlRows struct{ rows *sql.Rows }

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error             { return r.rows.Err() }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }

// sqlRow adapts *sql.Row to txn.Row, translating sql.ErrNoRows to the
// driver-agnostic txn.ErrNoRows.
type sqlRow struct{ row *sql.Row }

func (r *sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return txn.ErrNoRows
	}
	return err
}

// sqlCommandTag adapts sql.Result to txn.CommandTag.
type sqlCommandTag struct{ result sql.Result }

func (t *sqlCommandTag) RowsAffected() int64 {
	n, err := t.result.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// pgxRows adapts pgx.Rows to txn.Rows.
type pgxRows struct{ rows pgx.Rows }

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close()                 { r.rows.Close() }

// pgxRow adapts pgx.Row to txn.Row, translating pgx.ErrNoRows to the
// driver-agnostic txn.ErrNoRows.
type pgxRow struct{ row pgx.Row }

func (r *pgxRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return txn.ErrNoRows
	}
	return err
}

// pgxCommandTag adapts pgconn.CommandTag to txn.CommandTag.
type pgxCommandTag struct{ rowsAffected int64 }

func (t *pgxCommandTag) RowsAffected() int64 { return t.rowsAffected }

var (
	_ txn.Rows       = (*sqlRows)(nil)
	_ txn.Row        = (*sqlRow)(nil)
	_ txn.CommandTag = (*sqlCommandTag)(nil)
	_ txn.Rows       = (*pgxRows)(nil)
	_ txn.Row        = (*pgxRow)(nil)
	_ txn.CommandTag = (*pgxCommandTag)(nil)
)
