package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound          = errors.New("service_order_not_found")
	ErrOrderInactive          = errors.New("service_order_inactive")
	ErrOrderClaimed           = errors.New("service_order_claimed_by_invoice")
	ErrOrderUnavailable       = errors.New("service_order_unavailable")
	ErrNotClaimedByInvoice    = errors.New("service_order_not_claimed_by_invoice")
	ErrLineTypeMismatch       = errors.New("commitment_line_type_mismatch")
	ErrContractClientMismatch = errors.New("contract_client_mismatch")
	ErrConcurrentUpdate       = errors.New("concurrent_update")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
)

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: order %s -> %s", ErrInvalidStateTransition, from, to)
}
