package shared

import "fmt"

// Status is the lifecycle state of a sale or purchase.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// ErrStatusRevert is returned when a completed document is moved back.
var ErrStatusRevert = fmt.Errorf("%w: completed documents cannot return to Pending", ErrInvalidState)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Transition checks the move from s to next. It reports whether the move
// changes anything; Completed is terminal.
func (s Status) Transition(next Status) (bool, error) {
	if !next.Valid() {
		return false, InvalidField("status", "must be one of: Pending Completed")
	}
	if s == next {
		return false, nil
	}
	if s == StatusCompleted {
		return false, ErrStatusRevert
	}
	return true, nil
}
