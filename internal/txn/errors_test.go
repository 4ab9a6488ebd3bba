package txn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError_SQLStateMapping(t *testing.T) {
	cases := []struct {
		name     string
		de       *DriverError
		wantErr  error
		wantCode Code
	}{
		{"serialization_failure", &DriverError{SQLState: "40001"}, ErrSerializationConflict, CodeSerializationConflict},
		{"unique_violation", &DriverError{SQLState: "23505"}, ErrUniqueConflict, CodeUniqueConflict},
		{"foreign_key_violation", &DriverError{SQLState: "23503"}, ErrForeignKeyViolation, CodeInternal},
		{"check_violation", &DriverError{SQLState: "23514"}, ErrCheckViolation, CodeInternal},
		{"aborted_session_by_code", &DriverError{SQLState: "25P02"}, ErrTransactionAborted, CodeTransactionAborted},
		{"aborted_session_flag", &DriverError{AbortedSession: true}, ErrTransactionAborted, CodeTransactionAborted},
		{"connection_lost", &DriverError{Lost: true}, ErrConnectionLost, CodeConnectionLost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError(tc.de)
			assert.True(t, errors.Is(got, tc.wantErr), "got %v, want wrapping %v", got, tc.wantErr)
			assert.Equal(t, tc.wantCode, CodeOf(got))
		})
	}
}

func TestClassifyError_UnrecognizedSQLStatePassesThrough(t *testing.T) {
	de := &DriverError{SQLState: "99999", Message: "some other condition"}
	got := ClassifyError(de)
	assert.Same(t, de, got)
}

func TestClassifyError_NonDriverErrorPassesThrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, ClassifyError(plain))
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestDriverError_ErrorString(t *testing.T) {
	withMsg := &DriverError{Message: "duplicate key"}
	assert.Equal(t, "duplicate key", withMsg.Error())

	withoutMsg := &DriverError{SQLState: "23505"}
	assert.Contains(t, withoutMsg.Error(), "23505")
}

func TestCodeOf_NilIsEmpty(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
}
