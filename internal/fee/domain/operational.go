package domain

import (
	"github.com/shopspring/decimal"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
)

var hundred = decimal.NewFromInt(100)

// OperationalFee is the fee charged once per invoice.
type OperationalFee struct {
	Mode    partydomain.FeeMode       `json:"mode"`
	Timing  partydomain.PaymentTiming `json:"timing,omitempty"`
	Base    FeeBase                   `json:"base"`
	RatePct float64                   `json:"rate_pct"`
	BaseAmt decimal.Decimal           `json:"base_amount"`
	Amount  decimal.Decimal           `json:"amount"`
}

// ComputeOperationalFee applies the client's fee mode to the invoice. The
// client is the one of the batch's first order; callers keep batches to a
// single client.
func ComputeOperationalFee(client partydomain.Client, timing partydomain.PaymentTiming, netTotal, taxTotal decimal.Decimal, base FeeBase) (OperationalFee, error) {
	if !base.Valid() {
		return OperationalFee{}, ErrInvalidFeeBase
	}

	out := OperationalFee{
		Mode:    client.FeeMode,
		Base:    base,
		BaseAmt: netTotal,
		Amount:  decimal.Zero,
	}
	if base == FeeBaseAfterTax {
		out.BaseAmt = netTotal.Sub(taxTotal)
	}

	switch client.FeeMode {
	case partydomain.FeeModeFlat:
		out.RatePct = client.FlatFeeRate
	case partydomain.FeeModeVariable:
		if !timing.Valid() {
			return OperationalFee{}, ErrPaymentTimingRequired
		}
		out.Timing = timing
		out.RatePct = client.VariableRate(timing)
	case partydomain.FeeModeNone, "":
		out.Mode = partydomain.FeeModeNone
		return out, nil
	default:
		return OperationalFee{}, ErrInvalidFeeMode
	}

	out.Amount = out.BaseAmt.Mul(decimal.NewFromFloat(out.RatePct)).Div(hundred)
	return out, nil
}

// AdvanceDiscount is requested x fee% and the net left for the supplier.
func AdvanceDiscount(requested decimal.Decimal, feePct float64) (discount, net decimal.Decimal) {
	discount = requested.Mul(decimal.NewFromFloat(feePct)).Div(hundred)
	return discount, requested.Sub(discount)
}
