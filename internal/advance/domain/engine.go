package domain

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
)

// DaysAhead is the whole days, rounded up, between the desired receipt date
// and the date the money would otherwise arrive.
func DaysAhead(scheduled, desired time.Time) int {
	return int(math.Ceil(scheduled.Sub(desired).Hours() / 24))
}

// Candidate is an open invoice an advance may draw from.
type Candidate struct {
	InvoiceID snowflake.ID    `json:"invoice_id"`
	Number    string          `json:"number"`
	DueAt     time.Time       `json:"due_at"`
	Available decimal.Decimal `json:"available"`
}

// Excluded is an open invoice that cannot back an advance.
type Excluded struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	Number    string       `json:"number"`
	Reason    string       `json:"reason"`
}

const ExcludedFlatFeeClient = "flat_fee_client"

type Draw struct {
	InvoiceID snowflake.ID    `json:"invoice_id"`
	Number    string          `json:"number"`
	DueAt     time.Time       `json:"due_at"`
	Amount    decimal.Decimal `json:"amount"`
}

// Allocate fills requested from candidates in ascending due date, taking
// each invoice's available amount before moving to the next one.
func Allocate(candidates []Candidate, requested decimal.Decimal) ([]Draw, error) {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})

	total := decimal.Zero
	for _, c := range sorted {
		if c.Available.IsPositive() {
			total = total.Add(c.Available)
		}
	}
	if total.LessThan(requested) {
		return nil, ErrInsufficientPendingAmount
	}

	left := requested
	var draws []Draw
	for _, c := range sorted {
		if !left.IsPositive() {
			break
		}
		if !c.Available.IsPositive() {
			continue
		}
		amount := decimal.Min(c.Available, left)
		draws = append(draws, Draw{InvoiceID: c.InvoiceID, Number: c.Number, DueAt: c.DueAt, Amount: amount})
		left = left.Sub(amount)
	}
	return draws, nil
}

// ScheduledDate is when the drawn money would be received without an
// advance: the latest due date among the draws.
func ScheduledDate(draws []Draw) time.Time {
	var out time.Time
	for _, d := range draws {
		if d.DueAt.After(out) {
			out = d.DueAt
		}
	}
	return out
}

// Preview is the priced allocation of a requested advance.
type Preview struct {
	SupplierID      snowflake.ID    `json:"supplier_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	DesiredDate     time.Time       `json:"desired_date"`
	ScheduledDate   time.Time       `json:"scheduled_date"`
	DaysAhead       int             `json:"days_ahead"`
	FeePct          float64         `json:"fee_pct"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	NetReceivable   decimal.Decimal `json:"net_receivable"`
	FeeConfigID     snowflake.ID    `json:"fee_config_id"`
	EligibleAmount  decimal.Decimal `json:"eligible_amount"`
	Draws           []Draw          `json:"draws"`
	Excluded        []Excluded      `json:"excluded,omitempty"`
}

// Price allocates requested over candidates and applies the band of the
// resulting days ahead.
func Price(cfg feedomain.FeeConfig, candidates []Candidate, requested decimal.Decimal, desired time.Time) (Preview, error) {
	if !requested.IsPositive() {
		return Preview{}, ErrInvalidAmount
	}
	draws, err := Allocate(candidates, requested)
	if err != nil {
		return Preview{}, err
	}

	scheduled := ScheduledDate(draws)
	days := DaysAhead(scheduled, desired)
	band, err := cfg.BandFor(days)
	if err != nil {
		return Preview{}, err
	}
	discount, net := feedomain.AdvanceDiscount(requested, band.FeePct)

	eligible := decimal.Zero
	for _, c := range candidates {
		eligible = eligible.Add(c.Available)
	}
	return Preview{
		RequestedAmount: requested,
		DesiredDate:     desired,
		ScheduledDate:   scheduled,
		DaysAhead:       days,
		FeePct:          band.FeePct,
		DiscountAmount:  discount,
		NetReceivable:   net,
		FeeConfigID:     cfg.ID,
		EligibleAmount:  eligible,
		Draws:           draws,
	}, nil
}
