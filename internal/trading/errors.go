package trading

import (
	"errors"
	"fmt"

	"crypto-exchange/internal/models"
)

// ValidationError is returned when an order intent is rejected before any
// mutation takes place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is returned when a referenced order or user does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// UnauthorizedError is returned when the acting user does not own the
// resource being mutated.
type UnauthorizedError struct {
	UserID   string
	Resource string
	ID       string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s is not authorized to modify %s %s", e.UserID, e.Resource, e.ID)
}

// InvalidStateError is returned when an operation is not valid for the
// order's current status, e.g. cancelling a FILLED order.
type InvalidStateError struct {
	OrderID string
	Status  models.Status
	Op      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s order %s in status %s", e.Op, e.OrderID, e.Status)
}

// PersistenceError wraps a store-layer failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MatchingError is raised when the match loop fails mid-pass. Trades holds
// the executions already committed before the failure; they stay committed.
type MatchingError struct {
	OrderID string
	Trades  []*models.Trade
	Err     error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("matching order %s failed after %d trades: %v", e.OrderID, len(e.Trades), e.Err)
}

func (e *MatchingError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
