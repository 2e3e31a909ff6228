package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors unwrap to one of these so callers can
// classify with errors.Is and map to a response (validation -> 400,
// not found -> 404, conflict -> 409). Anything else from the store is
// a storage failure and fatal for the current operation.
var (
	// ErrValidation is the kind for rejected transaction input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the kind for missing accounts, transactions and
	// reconciliations.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the kind for operations rejected by current state
	// (locked reconciliation, reconciled postings).
	ErrConflict = errors.New("conflict")
)

// NotFoundError reports a missing record of a given resource.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnbalancedError reports postings whose signed sum is not zero.
type UnbalancedError struct {
	Sum float64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("unbalanced transaction: postings sum to %.2f", e.Sum)
}

func (e *UnbalancedError) Unwrap() error { return ErrValidation }

// UnexpectedTaxDataError reports tax fields on a non-business posting.
type UnexpectedTaxDataError struct {
	Index int
}

func (e *UnexpectedTaxDataError) Error() string {
	return fmt.Sprintf("posting %d: tax fields set on non-business posting", e.Index)
}

func (e *UnexpectedTaxDataError) Unwrap() error { return ErrValidation }

// MissingTaxFieldsError reports a taxable business posting without a
// rate or amount.
type MissingTaxFieldsError struct {
	Index   int
	GSTCode string
}

func (e *MissingTaxFieldsError) Error() string {
	return fmt.Sprintf("posting %d: taxable code %q requires gst rate and amount", e.Index, e.GSTCode)
}

func (e *MissingTaxFieldsError) Unwrap() error { return ErrValidation }

// TaxMismatchError reports a GST amount inconsistent with |amount| * rate.
type TaxMismatchError struct {
	Index    int
	Expected float64
	Actual   float64
}

func (e *TaxMismatchError) Error() string {
	return fmt.Sprintf("posting %d: gst amount %.2f does not match expected %.2f", e.Index, e.Actual, e.Expected)
}

func (e *TaxMismatchError) Unwrap() error { return ErrValidation }

// TooFewPostingsError reports a transaction with fewer than two postings.
type TooFewPostingsError struct {
	Count int
}

func (e *TooFewPostingsError) Error() string {
	return fmt.Sprintf("transaction needs at least 2 postings, got %d", e.Count)
}

func (e *TooFewPostingsError) Unwrap() error { return ErrValidation }

// ConflictError reports an operation rejected by current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ErrHasReconciledPostings rejects hard-deleting a transaction that has
// reconciled postings; the caller must void it instead.
var ErrHasReconciledPostings = &ConflictError{Reason: "transaction has reconciled postings, void it instead"}

// ErrArchivedAccount rejects new postings against an archived account.
var ErrArchivedAccount = &ConflictError{Reason: "account is archived"}
