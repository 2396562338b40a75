package domain

import "errors"

var (
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrInsufficientCapacity = errors.New("insufficient_contract_capacity")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidLineType      = errors.New("invalid_line_type")
	ErrInvalidWindow        = errors.New("invalid_validity_window")
	ErrLineInactive         = errors.New("commitment_line_inactive")
	ErrContractInactive     = errors.New("contract_inactive")
	ErrContractNotFound     = errors.New("contract_not_found")
	ErrLineNotFound         = errors.New("commitment_line_not_found")
	ErrConcurrentUpdate     = errors.New("concurrent_update")
)
