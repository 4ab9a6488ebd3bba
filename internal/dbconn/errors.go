package dbconn

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/careset/fhirstore/internal/txn"
)

// classify turns a raw driver error into *txn.DriverError so
// txn.ClassifyError never has to import a driver package.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return err // not a transaction-control error; repository layer maps this to NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &txn.DriverError{
			SQLState:       pgErr.Code,
			Message:        pgErr.Message,
			AbortedSession: pgErr.Code == "25P02",
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &txn.DriverError{
			SQLState:       string(pqErr.Code),
			Message:        pqErr.Message,
			AbortedSession: pqErr.Code == "25P02",
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "current transaction is aborted") {
		return &txn.DriverError{SQLState: "25P02", Message: msg, AbortedSession: true}
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "use of closed network connection") {
		return &txn.DriverError{Message: msg, Lost: true}
	}
	if strings.Contains(msg, "could not serialize access") || strings.Contains(msg, "40001") {
		return &txn.DriverError{SQLState: "40001", Message: msg}
	}

	return err
}
