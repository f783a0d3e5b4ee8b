package documents

import "errors"

// Domain errors for commercial documents.
var (
	// ErrNotFound indicates the requested document was not found.
	ErrNotFound = errors.New("document not found")

	// Status and lifecycle errors.
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotEditable       = errors.New("document lines are read-only in current status")
	ErrImmutable         = errors.New("credit notes are immutable once issued")
	ErrKindMismatch      = errors.New("operation not allowed for this document kind")
	ErrNotConvertible    = errors.New("only accepted quotes can be converted")

	// Validation errors.
	ErrInvalidKind     = errors.New("unknown document kind")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrCustomerMissing = errors.New("customer reference is required")
)
