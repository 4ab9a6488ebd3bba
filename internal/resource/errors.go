package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/careset/fhirstore/internal/txn"
)

// Severity mirrors the FHIR OperationOutcome severity vocabulary.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// OutcomeError is the structured error every repository operation
// surfaces to its caller: a severity, a machine code, human text, and
// the field paths ("expression") that caused it.
type OutcomeError struct {
	Severity   Severity
	Code       txn.Code
	Text       string
	Expression []string
	cause      error
}

func (e *OutcomeError) Error() string {
	if len(e.Expression) == 0 {
		return e.Text
	}
	return fmt.Sprintf("%s (%s)", e.Text, strings.Join(e.Expression, ", "))
}

func (e *OutcomeError) Unwrap() error { return e.cause }

// NewValidationOutcome builds a validation error naming the offending
// field paths.
func NewValidationOutcome(text string, expression ...string) *OutcomeError {
	return &OutcomeError{
		Severity:   SeverityError,
		Code:       txn.CodeValidation,
		Text:       text,
		Expression: expression,
	}
}

// NewNotFoundOutcome builds the outcome for a resource lookup miss.
func NewNotFoundOutcome(resourceType, id string) *OutcomeError {
	return &OutcomeError{
		Severity: SeverityError,
		Code:     txn.CodeNotFound,
		Text:     fmt.Sprintf("%s/%s not found", resourceType, id),
	}
}

// FromTxnError classifies an error surfaced out of txn.WithTransaction
// into the repository's outcome shape. Errors already shaped as
// *OutcomeError (from validation) pass through unchanged.
func FromTxnError(err error) error {
	if err == nil {
		return nil
	}

	var outcome *OutcomeError
	if errors.As(err, &outcome) {
		return outcome
	}

	code := txn.CodeOf(err)
	switch {
	case errors.Is(err, txn.ErrUniqueConflict):
		return &OutcomeError{Severity: SeverityError, Code: code, Text: "resource already exists", cause: err}
	case errors.Is(err, txn.ErrForeignKeyViolation):
		return &OutcomeError{Severity: SeverityError, Code: txn.CodeValidation, Text: "referenced resource does not exist", cause: err}
	case errors.Is(err, txn.ErrCheckViolation):
		return &OutcomeError{Severity: SeverityError, Code: txn.CodeValidation, Text: "resource failed a data constraint", cause: err}
	case errors.Is(err, txn.ErrSerializationConflict):
		return &OutcomeError{Severity: SeverityError, Code: code, Text: "concurrent update conflict, retry the operation", cause: err}
	case errors.Is(err, txn.ErrTransactionAborted):
		return &OutcomeError{Severity: SeverityFatal, Code: code, Text: "transaction aborted", cause: err}
	case errors.Is(err, txn.ErrConnectionLost):
		return &OutcomeError{Severity: SeverityFatal, Code: code, Text: "database connection lost", cause: err}
	default:
		return &OutcomeError{Severity: SeverityFatal, Code: txn.CodeInternal, Text: err.Error(), cause: err}
	}
}

// IsNotFound reports whether err (possibly wrapped) is a not-found outcome.
func IsNotFound(err error) bool {
	var outcome *OutcomeError
	return errors.As(err, &outcome) && outcome.Code == txn.CodeNotFound
}

// IsConflict reports whether err is a unique or serialization conflict.
func IsConflict(err error) bool {
	var outcome *OutcomeError
	if !errors.As(err, &outcome) {
		return false
	}
	return outcome.Code == txn.CodeUniqueConflict || outcome.Code == txn.CodeSerializationConflict
}
