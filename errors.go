package cocoa

import (
	"errors"
	"fmt"

	"github.com/xraph/cocoa/lock"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("cocoa: not found")
	ErrAlreadyExists = errors.New("cocoa: already exists")
	ErrInvalidInput  = errors.New("cocoa: invalid input")

	// Entity lookups
	ErrFarmerNotFound  = errors.New("cocoa: farmer not found")
	ErrSackNotFound    = errors.New("cocoa: sack not found")
	ErrBagNotFound     = errors.New("cocoa: bag not found")
	ErrBatchNotFound   = errors.New("cocoa: batch not found")
	ErrWarrantNotFound = errors.New("cocoa: warrant receipt not found")
	ErrLenderNotFound  = errors.New("cocoa: lender not found")
	ErrBundleNotFound  = errors.New("cocoa: bundle not found")
	ErrInvoiceNotFound = errors.New("cocoa: invoice not found")

	// Aggregation errors
	ErrCapacityExceeded  = errors.New("cocoa: capacity exceeded")
	ErrSackOverAllocated = errors.New("cocoa: sack allocation exceeds unallocated weight")
	ErrBagAlreadyBatched = errors.New("cocoa: bag already belongs to a batch")

	// Warrant errors
	ErrAlreadyCovered = errors.New("cocoa: already covered by a warrant receipt of this type")

	// Bundle and funding errors
	ErrInvalidFilter        = errors.New("cocoa: invalid filter")
	ErrSackNotEligible      = errors.New("cocoa: sack not eligible for bundling")
	ErrBundlePaid           = errors.New("cocoa: bundle already paid")
	ErrInsufficientPosition = errors.New("cocoa: insufficient lender position")

	// Settlement errors
	ErrInvoiceSettled = errors.New("cocoa: invoice already settled")

	// Concurrency errors
	ErrLockNotObtained = lock.ErrNotObtained

	// Store errors
	ErrStoreNotReady     = errors.New("cocoa: store not ready")
	ErrStoreClosed       = errors.New("cocoa: store is closed")
	ErrTransactionFailed = errors.New("cocoa: transaction failed")
	ErrMigrationFailed   = errors.New("cocoa: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("cocoa: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any validation failure.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "cocoa: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cocoa: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrFarmerNotFound) ||
		errors.Is(err, ErrSackNotFound) ||
		errors.Is(err, ErrBagNotFound) ||
		errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrWarrantNotFound) ||
		errors.Is(err, ErrLenderNotFound) ||
		errors.Is(err, ErrBundleNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsValidation returns true for input that was rejected before any write.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidFilter)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyCovered) ||
		errors.Is(err, ErrSackNotEligible) ||
		errors.Is(err, ErrSackOverAllocated) ||
		errors.Is(err, ErrBagAlreadyBatched) ||
		errors.Is(err, ErrBundlePaid) ||
		errors.Is(err, ErrInvoiceSettled) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInsufficientPosition)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockNotObtained) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
