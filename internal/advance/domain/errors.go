package domain

import (
	"errors"
	"fmt"

	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
)

var (
	ErrAdvanceNotFound           = errors.New("advance_not_found")
	ErrInsufficientPendingAmount = errors.New("insufficient_pending_amount")
	ErrInvalidAmount             = errors.New("invalid_advance_amount")
	ErrNotRequester              = errors.New("advance_not_requested_by_supplier")
	ErrConcurrentUpdate          = errors.New("concurrent_update")
	ErrInvalidStateTransition    = errors.New("invalid_state_transition")
	// ErrInvalidRange is returned when days ahead falls outside 1-30.
	ErrInvalidRange = feedomain.ErrInvalidRange
)

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: advance %s -> %s", ErrInvalidStateTransition, from, to)
}
