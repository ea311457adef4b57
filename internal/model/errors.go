package model

import (
	"errors"
	"fmt"
)

// Domain guard errors. Every illegal operation on a register or ticket fails
// with one of these — callers react, nothing is retried internally.
var (
	// ErrInvalidAmount rejects non-positive sale/withdrawal amounts and bad
	// line data (quantity <= 0, negative unit price, discount outside 0–100).
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects withdrawals that would drive the drawer
	// balance below zero. The balance is left unchanged.
	ErrInsufficientBalance = errors.New("insufficient drawer balance")

	// ErrTicketImmutable rejects mutations on tickets that are no longer PENDING.
	ErrTicketImmutable = errors.New("ticket is no longer editable")

	// ErrNotFound is returned when a referenced register, ticket or line does
	// not exist. Repositories map their storage-level not-found onto this.
	ErrNotFound = errors.New("not found")
)

// InvalidTransitionError identifies the state-machine violation: which
// operation was attempted while the register was in which state.
type InvalidTransitionError struct {
	State RegisterState
	Op    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a %s register", e.Op, e.State)
}

func newInvalidTransition(state RegisterState, op string) error {
	return &InvalidTransitionError{State: state, Op: op}
}
