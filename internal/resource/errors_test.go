package resource_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/careset/fhirstore/internal/resource"
	"github.com/careset/fhirstore/internal/txn"
)

func TestFromTxnError_ClassifiesSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code txn.Code
	}{
		{"unique", txn.ErrUniqueConflict, txn.CodeUniqueConflict},
		{"serialization", txn.ErrSerializationConflict, txn.CodeSerializationConflict},
		{"aborted", txn.ErrTransactionAborted, txn.CodeTransactionAborted},
		{"connection_lost", txn.ErrConnectionLost, txn.CodeConnectionLost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := resource.FromTxnError(tc.err)
			var oe *resource.OutcomeError
			assert.ErrorAs(t, outcome, &oe)
			assert.Equal(t, tc.code, oe.Code)
			assert.True(t, errors.Is(outcome, tc.err))
		})
	}
}

func TestFromTxnError_PassesThroughExistingOutcome(t *testing.T) {
	original := resource.NewValidationOutcome("bad field", "Patient.foo")
	got := resource.FromTxnError(original)
	assert.Same(t, original, got)
}

func TestFromTxnError_Nil(t *testing.T) {
	assert.Nil(t, resource.FromTxnError(nil))
}

func TestIsNotFound(t *testing.T) {
	err := resource.NewNotFoundOutcome("Patient", "123")
	assert.True(t, resource.IsNotFound(err))
	assert.False(t, resource.IsNotFound(errors.New("other")))
}
