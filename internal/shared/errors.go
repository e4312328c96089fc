package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a referenced product, supplier, sale or purchase does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed or rule-breaking request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock indicates a decrement would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTransactionAborted indicates a multi-step operation was rolled back.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrInvalidState indicates the record's status forbids the requested change.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrDuplicate indicates a unique constraint (barcode, idempotency key) was hit.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrBusy indicates a stock lock could not be obtained in time.
	ErrBusy = errors.New("resource busy")
)

// Kind names an error category in API responses.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindInvalidInput       Kind = "InvalidInput"
	KindInsufficientStock  Kind = "InsufficientStock"
	KindTransactionAborted Kind = "TransactionAborted"
	KindInvalidState       Kind = "InvalidState"
	KindDuplicate          Kind = "Duplicate"
	KindBusy               Kind = "Busy"
	KindInternal           Kind = "Internal"
)

// KindOf resolves the most specific kind carried by err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrTransactionAborted):
		return KindTransactionAborted
	default:
		return KindInternal
	}
}

// StockError reports which product blocked a decrement.
type StockError struct {
	ProductID   int64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *StockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors; it matches ErrInvalidInput.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrInvalidInput }

// Add appends a field error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Err returns nil when no field errors were collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// InvalidField builds a single-field validation error.
func InvalidField(field, message string) error {
	return ValidationErrors{{Field: field, Message: message}}
}

// AbortedError wraps the failure that rolled back an operation. It matches
// both ErrTransactionAborted and the underlying cause.
type AbortedError struct {
	Op  string
	Err error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s aborted: %v", e.Op, e.Err)
}

func (e *AbortedError) Unwrap() []error {
	return []error{ErrTransactionAborted, e.Err}
}
