package domain

import (
	"github.com/shopspring/decimal"
)

// Reserve consumes amount from line. It fails without modifying the line
// when the line is inactive or amount exceeds Available.
func Reserve(line *CommitmentLine, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	if !line.Active {
		return ErrLineInactive
	}
	if amount.GreaterThan(line.Available()) {
		return ErrInsufficientBalance
	}
	line.Consumed = line.Consumed.Add(amount)
	return nil
}

// Release returns amount to line. Consumption never goes below zero; clamped
// reports that the release asked for more than was consumed.
func Release(line *CommitmentLine, amount decimal.Decimal) (clamped bool, err error) {
	if amount.IsNegative() {
		return false, ErrInvalidAmount
	}
	next := line.Consumed.Sub(amount)
	if next.IsNegative() {
		line.Consumed = decimal.Zero
		return true, nil
	}
	line.Consumed = next
	return false, nil
}

// Cancel sets the administratively cancelled value. A line whose cancelled
// value reaches its authorized value is deactivated. Cancelling below what
// is already consumed fails.
func Cancel(line *CommitmentLine, cancelled decimal.Decimal) error {
	if cancelled.IsNegative() || cancelled.GreaterThan(line.Authorized) {
		return ErrInvalidAmount
	}
	if line.Consumed.GreaterThan(line.Authorized.Sub(cancelled)) {
		return ErrInsufficientBalance
	}
	line.Cancelled = cancelled
	if !cancelled.LessThan(line.Authorized) {
		line.Active = false
	}
	return nil
}

// ContractCapacity sums the contract value and every addendum, and the
// committed value of the active lines.
func ContractCapacity(contract Contract, addenda []Addendum, lines []CommitmentLine) Capacity {
	total := contract.Value
	for _, a := range addenda {
		total = total.Add(a.Value)
	}
	committed := decimal.Zero
	for _, l := range lines {
		if !l.Active {
			continue
		}
		committed = committed.Add(l.Committed())
	}
	return Capacity{
		ContractID: contract.ID,
		Total:      total,
		Committed:  committed,
		Free:       total.Sub(committed),
	}
}
