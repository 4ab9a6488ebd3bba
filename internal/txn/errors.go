package txn

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the package's error taxonomy. Repository code
// checks these with errors.Is; internal/resource wraps them into the
// structured outcome shape the HTTP layer returns.
var (
	// ErrTransactionAborted is returned once the session has entered the
	// aborted state or when a nested call is attempted against an
	// already-aborted outer transaction.
	ErrTransactionAborted = errors.New("txn: transaction aborted")

	// ErrSerializationConflict is returned when the engine detects a
	// serializable-isolation conflict at commit time.
	ErrSerializationConflict = errors.New("txn: serialization conflict")

	// ErrUniqueConflict wraps a unique-constraint violation.
	ErrUniqueConflict = errors.New("txn: unique constraint violation")

	// ErrForeignKeyViolation wraps a foreign-key constraint violation.
	ErrForeignKeyViolation = errors.New("txn: foreign key violation")

	// ErrCheckViolation wraps a check-constraint violation.
	ErrCheckViolation = errors.New("txn: check constraint violation")

	// ErrConnectionLost indicates the underlying connection died; rollback
	// is moot, the TC is simply discarded.
	ErrConnectionLost = errors.New("txn: connection lost")

	// ErrNoTransaction is returned by PostCommit when called outside a
	// live transaction.
	ErrNoTransaction = errors.New("txn: no transaction in context")

	// ErrNoRows is returned by Row.Scan when a query matched no rows.
	// internal/dbconn translates both database/sql's and pgx's
	// equivalents into this so the repository layer stays driver-agnostic.
	ErrNoRows = errors.New("txn: no rows in result set")

	// ErrSerializableNestingMismatch is the programming error of
	// requesting Serializable on a nested call whose outer transaction
	// did not request it.
	ErrSerializableNestingMismatch = errors.New("txn: nested call requested serializable isolation under a non-serializable outer transaction")
)

// Code classifies an error for callers that want a machine-readable
// discriminant instead of errors.Is chains.
type Code string

const (
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUniqueConflict        Code = "UNIQUE_CONFLICT"
	CodeSerializationConflict Code = "SERIALIZATION_CONFLICT"
	CodeTransactionAborted    Code = "TRANSACTION_ABORTED"
	CodeConnectionLost        Code = "CONNECTION_LOST"
	CodeInternal              Code = "INTERNAL"
)

// DriverError is the minimal shape the CIA needs from a driver error to
// classify it, so txn never imports pgx/pgconn directly. internal/dbconn
// adapts pgconn.PgError into this.
type DriverError struct {
	// SQLState is the five-character PostgreSQL error code (e.g. 23505).
	SQLState string
	// Message is the driver-supplied human text.
	Message string
	// AbortedSession is true when the driver reports the session is in
	// the "current transaction is aborted" state.
	AbortedSession bool
	// Lost is true when the driver reports the connection itself died.
	Lost bool
}

func (e *DriverError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("driver error (sqlstate %s)", e.SQLState)
}

// ClassifyError translates a raw error (possibly a *DriverError, possibly
// a plain Go error) into the package's taxonomy. Unrecognized errors pass
// through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var de *DriverError
	if errors.As(err, &de) {
		switch {
		case de.Lost:
			return fmt.Errorf("%w: %s", ErrConnectionLost, de.Message)
		case de.AbortedSession:
			return fmt.Errorf("%w: %s", ErrTransactionAborted, de.Message)
		}

		switch de.SQLState {
		case "40001": // serialization_failure
			return fmt.Errorf("%w: %s", ErrSerializationConflict, de.Message)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueConflict, de.Message)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, de.Message)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrCheckViolation, de.Message)
		case "25P02": // in_failed_sql_transaction
			return fmt.Errorf("%w: %s", ErrTransactionAborted, de.Message)
		}
	}

	return err
}

// CodeOf returns the machine code for a classified error, CodeInternal if
// nothing more specific matches.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransactionAborted):
		return CodeTransactionAborted
	case errors.Is(err, ErrSerializationConflict):
		return CodeSerializationConflict
	case errors.Is(err, ErrUniqueConflict):
		return CodeUniqueConflict
	case errors.Is(err, ErrConnectionLost):
		return CodeConnectionLost
	default:
		return CodeInternal
	}
}
