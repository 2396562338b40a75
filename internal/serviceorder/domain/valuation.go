package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type Valuation struct {
	DiscountedParts decimal.Decimal
	DiscountedLabor decimal.Decimal
	Final           decimal.Decimal
}

// Discount applies a 0-100 percentage discount to gross.
func Discount(gross decimal.Decimal, pct float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(hundred))
	return gross.Mul(factor)
}

func Valuate(grossParts decimal.Decimal, partsPct float64, grossLabor decimal.Decimal, laborPct float64) Valuation {
	parts := Discount(grossParts, partsPct)
	labor := Discount(grossLabor, laborPct)
	return Valuation{
		DiscountedParts: parts,
		DiscountedLabor: labor,
		Final:           parts.Add(labor),
	}
}

// ApplyValuation recomputes the derived values from the gross inputs. It
// overwrites, never accumulates.
func (o *ServiceOrder) ApplyValuation() {
	v := Valuate(o.GrossParts, o.PartsDiscountPct, o.GrossLabor, o.LaborDiscountPct)
	o.DiscountedParts = v.DiscountedParts
	o.DiscountedLabor = v.DiscountedLabor
	o.FinalValue = v.Final
}

// GrossTotal is parts plus labor before discounts.
func (o *ServiceOrder) GrossTotal() decimal.Decimal {
	return o.GrossParts.Add(o.GrossLabor)
}
