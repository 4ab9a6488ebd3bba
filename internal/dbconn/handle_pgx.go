package dbconn

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careset/fhirstore/internal/txn"
)

// PgxHandle is the production ConnectionHandle, backed by a checked-out
// pgxpool.Conn for the lifetime of one outermost transaction.
type PgxHandle struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

var _ txn.ConnectionHandle = (*PgxHandle)(nil)

func (h *PgxHandle) Begin(ctx context.Context, level txn.IsolationLevel) error {
	opts := pgx.TxOptions{}
	if level == txn.Serializable {
		opts.IsoLevel = pgx.Serializable
	}
	tx, err := h.conn.BeginTx(ctx, opts)
	if err != nil {
		return classify(err)
	}
	h.tx = tx
	return nil
}

func (h *PgxHandle) Savepoint(ctx context.Context, name string) error {
	_, err := h.tx.Exec(ctx, "SAVEPOINT "+name)
	return classify(err)
}

func (h *PgxHandle) Release(ctx context.Context, name string) error {
	_, err := h.tx.Exec(ctx, "RELEASE SAVEPOINT "+name)
	return classify(err)
}

func (h *PgxHandle) RollbackTo(ctx context.Context, name string) error {
	_, err := h.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return classify(err)
}

func (h *PgxHandle) Commit(ctx context.Context) error {
	return classify(h.tx.Commit(ctx))
}

func (h *PgxHandle) Rollback(ctx context.Context) error {
	err := h.tx.Rollback(ctx)
	if err == pgx.ErrTxClosed {
		return nil
	}
	return classify(err)
}

func (h *PgxHandle) Query(ctx context.Context, query string, args ...any) (txn.Rows, error) {
	rows, err := h.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return &pgxRows{rows: rows}, nil
}

func (h *PgxHandle) QueryRow(ctx context.Context, query string, args ...any) txn.Row {
	return &pgxRow{row: h.tx.QueryRow(ctx, query, args...)}
}

func (h *PgxHandle) Exec(ctx context.Context, query string, args ...any) (txn.CommandTag, error) {
	tag, err := h.tx.Exec(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return &pgxCommandTag{rowsAffected: tag.RowsAffected()}, nil
}
