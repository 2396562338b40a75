package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
)

var hundred = decimal.NewFromInt(100)

// Base is the discounted value of an order split by portion.
type Base struct {
	Parts decimal.Decimal
	Labor decimal.Decimal
}

// CategoryAmount is what one category withholds. Retention is charged on
// the combined value and reported in Combined only.
type CategoryAmount struct {
	Category partydomain.TaxCategory `json:"category"`
	Parts    decimal.Decimal         `json:"parts"`
	Labor    decimal.Decimal         `json:"labor"`
	Combined decimal.Decimal         `json:"combined"`
}

func (a CategoryAmount) Total() decimal.Decimal {
	return a.Parts.Add(a.Labor).Add(a.Combined)
}

type Withholding struct {
	Applied    bool             `json:"applied"`
	Categories []CategoryAmount `json:"categories,omitempty"`
	Total      decimal.Decimal  `json:"total"`
}

// Applies reports whether withholding is due for the pair: the supplier is
// outside the simplified regime and the client has one to three categories.
func Applies(supplier partydomain.Supplier, client partydomain.Client) bool {
	n := len(client.TaxCategories)
	return supplier.NotSimplifiedTaxRegime && n >= 1 && n <= partydomain.MaxTaxCategories
}

// OrderWithholding computes the tax withheld on one order. Amounts are not
// rounded.
func OrderWithholding(supplier partydomain.Supplier, client partydomain.Client, base Base, cfg TaxConfig) (Withholding, error) {
	if !Applies(supplier, client) {
		return Withholding{Total: decimal.Zero}, nil
	}

	out := Withholding{Applied: true, Total: decimal.Zero}
	for _, category := range client.TaxCategories {
		rate, ok := cfg.Rate(category)
		if !ok {
			return Withholding{}, fmt.Errorf("%w: no rates for category %s in tax config v%d", ErrConfigurationMissing, category, cfg.Version)
		}

		amount := CategoryAmount{
			Category: category,
			Parts:    decimal.Zero,
			Labor:    decimal.Zero,
			Combined: decimal.Zero,
		}
		switch category {
		case partydomain.TaxMunicipal:
			pct := percent(rate.IR)
			amount.Parts = base.Parts.Mul(pct)
			amount.Labor = base.Labor.Mul(pct)
		case partydomain.TaxState, partydomain.TaxFederal:
			pct := combinedPercent(rate)
			amount.Parts = base.Parts.Mul(pct)
			amount.Labor = base.Labor.Mul(pct)
		case partydomain.TaxRetention:
			amount.Combined = base.Parts.Add(base.Labor).Mul(combinedPercent(rate))
		default:
			return Withholding{}, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}

		out.Categories = append(out.Categories, amount)
		out.Total = out.Total.Add(amount.Total())
	}
	return out, nil
}

func percent(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Div(hundred)
}

// combinedPercent sums the four rates as decimals so 1.2+0.65+3+1 is
// exactly 5.85.
func combinedPercent(r JurisdictionRate) decimal.Decimal {
	sum := decimal.NewFromFloat(r.IR).
		Add(decimal.NewFromFloat(r.PIS)).
		Add(decimal.NewFromFloat(r.COFINS)).
		Add(decimal.NewFromFloat(r.CSLL))
	return sum.Div(hundred)
}
