package dbconn

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careset/fhirstore/internal/txn"
)

func TestClassify_PgconnError(t *testing.T) {
	err := classify(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	var de *txn.DriverError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "23505", de.SQLState)
	assert.False(t, de.AbortedSession)

	assert.ErrorIs(t, txn.ClassifyError(err), txn.ErrUniqueConflict)
}

func TestClassify_PgconnAbortedSession(t *testing.T) {
	err := classify(&pgconn.PgError{Code: "25P02", Message: "current transaction is aborted"})

	var de *txn.DriverError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.AbortedSession)
}

func TestClassify_LibPQError(t *testing.T) {
	err := classify(&pq.Error{Code: "40001", Message: "could not serialize access"})

	var de *txn.DriverError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "40001", de.SQLState)

	assert.ErrorIs(t, txn.ClassifyError(err), txn.ErrSerializationConflict)
}

func TestClassify_AbortedSessionByMessage(t *testing.T) {
	err := classify(errors.New("pq: current transaction is aborted, commands ignored until end of transaction block"))

	var de *txn.DriverError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.AbortedSession)
	assert.ErrorIs(t, txn.ClassifyError(err), txn.ErrTransactionAborted)
}

func TestClassify_ConnectionLostByMessage(t *testing.T) {
	err := classify(errors.New("write tcp 127.0.0.1:5432: broken pipe"))

	var de *txn.DriverError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.Lost)
	assert.ErrorIs(t, txn.ClassifyError(err), txn.ErrConnectionLost)
}

func TestClassify_ErrNoRowsPassesThrough(t *testing.T) {
	assert.Equal(t, sql.ErrNoRows, classify(sql.ErrNoRows))
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, classify(nil))
}
