package dbconn

import (
	"context"
	"database/sql"

	"github.com/careset/fhirstore/internal/txn"
)

// SQLHandle adapts a database/sql driver to txn.ConnectionHandle. It is
// the alternate-driver path: sqlite3 for nested-transaction integration
// tests, go-sqlmock for exact SQL-sequence assertions, and lib/pq as a
// non-pgx production option.
type SQLHandle struct {
	db *sql.DB
	tx *sql.Tx
}

var _ txn.ConnectionHandle = (*SQLHandle)(nil)

// NewSQLHandle wraps an already-open *sql.DB. Begin must be called (by
// txn.WithTransaction) before Query/Exec are usable.
func NewSQLHandle(db *sql.DB) *SQLHandle {
	return &SQLHandle{db: db}
}

// Begin issues BEGIN and, for Serializable, a literal SET TRANSACTION
// ISOLATION LEVEL statement on the new transaction.
func (h *SQLHandle) Begin(ctx context.Context, level txn.IsolationLevel) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	h.tx = tx

	if level == txn.Serializable {
		if _, err := tx.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
			_ = tx.Rollback()
			return classify(err)
		}
	}
	return nil
}

func (h *SQLHandle) Savepoint(ctx context.Context, name string) error {
	_, err := h.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return classify(err)
}

func (h *SQLHandle) Release(ctx context.Context, name string) error {
	_, err := h.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return classify(err)
}

func (h *SQLHandle) RollbackTo(ctx context.Context, name string) error {
	_, err := h.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return classify(err)
}

func (h *SQLHandle) Commit(ctx context.Context) error {
	return classify(h.tx.Commit())
}

func (h *SQLHandle) Rollback(ctx context.Context) error {
	err := h.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return classify(err)
}

func (h *SQLHandle) Query(ctx context.Context, query string, args ...any) (txn.Rows, error) {
	rows, err := h.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return &sqlRows{rows: rows}, nil
}

func (h *SQLHandle) QueryRow(ctx context.Context, query string, args ...any) txn.Row {
	return &sqlRow{row: h.tx.QueryRowContext(ctx, query, args...)}
}

func (h *SQLHandle) Exec(ctx context.Context, query string, args ...any) (txn.CommandTag, error) {
	res, err := h.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return &sqlCommandTag{result: res}, nil
}
