package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrInvoiceInactive         = errors.New("invoice_inactive")
	ErrOrdersUnavailable       = errors.New("orders_unavailable")
	ErrOrderNotOnInvoice       = errors.New("order_not_on_invoice")
	ErrLinePaid                = errors.New("invoice_line_paid")
	ErrInvalidCounterpart      = errors.New("invalid_invoice_counterpart")
	ErrInvalidPeriod           = errors.New("invalid_invoice_period")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrAdvanceExceedsRemaining = errors.New("advance_exceeds_remaining")
	ErrConcurrentUpdate        = errors.New("concurrent_update")
	ErrInvalidStateTransition  = errors.New("invalid_state_transition")
)

func transitionError(from Status, action string) error {
	return fmt.Errorf("%w: invoice %s cannot %s", ErrInvalidStateTransition, from, action)
}

// CanDeactivate reports whether the invoice may still be withdrawn: nothing
// has been paid or advanced on it.
func (inv *Invoice) CanDeactivate() error {
	if !inv.Active {
		return ErrInvoiceInactive
	}
	if inv.Status != StatusAwaitingPayment {
		return transitionError(inv.Status, "be deactivated")
	}
	return nil
}
