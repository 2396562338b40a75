package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
)

// ActiveLines returns the lines not removed from the invoice.
func (inv *Invoice) ActiveLines() []*Line {
	out := make([]*Line, 0, len(inv.Lines))
	for i := range inv.Lines {
		if !inv.Lines[i].Removed() {
			out = append(out, &inv.Lines[i])
		}
	}
	return out
}

// LineFor returns the active line of orderID.
func (inv *Invoice) LineFor(orderID snowflake.ID) *Line {
	for _, line := range inv.ActiveLines() {
		if line.OrderID == orderID {
			return line
		}
	}
	return nil
}

// RecalculateTotals sums the active lines and prices the operational fee
// with the invoice's recorded fee base and timing.
func (inv *Invoice) RecalculateTotals(feeClient partydomain.Client, now time.Time) error {
	gross, discount, net, tax := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range inv.ActiveLines() {
		gross = gross.Add(line.GrossValue)
		discount = discount.Add(line.DiscountValue)
		net = net.Add(line.NetValue)
		tax = tax.Add(line.TaxAmount)
	}

	fee, err := feedomain.ComputeOperationalFee(feeClient, inv.PaymentTiming, net, tax, inv.FeeBase)
	if err != nil {
		return err
	}

	inv.GrossTotal = gross
	inv.DiscountTotal = discount
	inv.NetTotal = net
	inv.TaxTotal = tax
	inv.FeeRatePct = fee.RatePct
	inv.FeeTotal = fee.Amount
	inv.AmountDue = net.Sub(tax).Sub(fee.Amount)
	inv.RecalculatePayments(now)
	return nil
}

// PaidFromOrders is Σ(paid lines' value snapshot) × amountDue / netTotal,
// rounded to two decimals after the ratio is applied.
func (inv *Invoice) PaidFromOrders() decimal.Decimal {
	if !inv.NetTotal.IsPositive() {
		return decimal.Zero
	}
	paid := decimal.Zero
	for _, line := range inv.ActiveLines() {
		if line.Paid {
			paid = paid.Add(line.NetValue)
		}
	}
	return paid.Mul(inv.AmountDue).Div(inv.NetTotal).Round(2)
}

// DueCents is the amount due rounded to cents. Payments settle against it.
func (inv *Invoice) DueCents() decimal.Decimal {
	return decimal.Max(inv.AmountDue.Round(2), decimal.Zero)
}

// RecalculatePayments derives amount paid, remaining and status. now stamps
// PaidAt the first time the invoice becomes fully paid.
func (inv *Invoice) RecalculatePayments(now time.Time) {
	due := inv.DueCents()
	paid := decimal.Min(inv.PaidFromOrders().Add(inv.AmountAdvanced), due)
	inv.AmountPaid = paid
	inv.AmountRemaining = due.Sub(paid)

	switch {
	case due.IsPositive() && paid.Equal(due):
		inv.Status = StatusPaid
		if inv.PaidAt == nil && !now.IsZero() {
			at := now
			inv.PaidAt = &at
		}
	case paid.IsPositive():
		inv.Status = StatusPartiallyPaid
		inv.PaidAt = nil
	default:
		inv.Status = StatusAwaitingPayment
		inv.PaidAt = nil
	}
}

// ApplyAdvancePayment credits an advance draw to the invoice.
func (inv *Invoice) ApplyAdvancePayment(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !inv.Active {
		return ErrInvoiceInactive
	}
	if amount.GreaterThan(inv.AmountRemaining) {
		return ErrAdvanceExceedsRemaining
	}
	inv.AmountAdvanced = inv.AmountAdvanced.Add(amount)
	inv.RecalculatePayments(now)
	return nil
}
