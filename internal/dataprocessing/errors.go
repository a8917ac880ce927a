package dataprocessing

import (
	"errors"
	"fmt"
)

// Error classes. Every engine error matches exactly one of these through errors.Is.
var (
	ErrSchema     = errors.New("schema error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// Specific causes, also reachable through errors.Is.
var (
	ErrTooFewRows           = errors.New("grid needs two header rows and at least one data row")
	ErrMissingAccountColumn = errors.New("missing CONTA column")
	ErrMissingRowIDColumn   = errors.New("missing ID column")
	ErrNoDataRows           = errors.New("no data rows left after filtering")
	ErrInvalidTotal         = errors.New("new total must be a finite number")
	ErrNothingToRescale     = errors.New("row has no value columns to absorb the new total")
	ErrRowNotFound          = errors.New("row not found")
	ErrUnsupportedFormat    = errors.New("unsupported spreadsheet format")
	ErrUnreadableWorkbook   = errors.New("workbook cannot be read")
)

// SchemaError reports a grid whose header cannot produce a usable schema.
type SchemaError struct {
	Reason error
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("schema error: %v", e.Reason)
	}
	return fmt.Sprintf("schema error: %v: %s", e.Reason, e.Detail)
}

func (e *SchemaError) Unwrap() []error {
	return []error{ErrSchema, e.Reason}
}

// ValidationError reports input that is well formed but unusable.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation error: %v", e.Reason)
	}
	return fmt.Sprintf("validation error: %v: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}

// NotFoundError reports a rescale target missing from the dataset.
type NotFoundError struct {
	RowID   string
	Account string
}

func (e *NotFoundError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("row %q not found", e.RowID)
	}
	return fmt.Sprintf("row %q with account %q not found", e.RowID, e.Account)
}

func (e *NotFoundError) Unwrap() []error {
	return []error{ErrNotFound, ErrRowNotFound}
}
