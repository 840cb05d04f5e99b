package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a storage failure so transport layers can map it
// without inspecting error strings.
type Kind int

const (
	// KindUnknown is any error that did not come from the storage gateway
	KindUnknown Kind = iota
	// KindSchema means the users table could not be ensured at startup
	KindSchema
	// KindRead means a query failed
	KindRead
	// KindUniqueConstraint means an insert collided with an existing unique value
	KindUniqueConstraint
	// KindWrite means an insert failed for any other reason
	KindWrite
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema_error"
	case KindRead:
		return "storage_read_error"
	case KindUniqueConstraint:
		return "unique_constraint_error"
	case KindWrite:
		return "storage_write_error"
	default:
		return "unknown_error"
	}
}

// StorageError represents a failed storage operation with its classification
type StorageError struct {
	Kind Kind
	Op   string
	Err  error
}

// NewStorageError creates a new storage error
func NewStorageError(kind Kind, op string, err error) *StorageError {
	return &StorageError{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// Error returns the storage engine's own message so clients see what the
// database reported.
func (e *StorageError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the wrapped error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first StorageError in err's chain
func KindOf(err error) Kind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
