package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// FeeBase selects the value the operational fee is charged on.
type FeeBase string

const (
	// FeeBaseNetTotal charges the fee on the invoice net total, ignoring
	// withholding.
	FeeBaseNetTotal FeeBase = "net_total"
	// FeeBaseAfterTax charges the fee on net total minus withheld tax.
	FeeBaseAfterTax FeeBase = "after_tax"
)

func (b FeeBase) Valid() bool {
	return b == FeeBaseNetTotal || b == FeeBaseAfterTax
}

const (
	MinAdvanceDays = 1
	MaxAdvanceDays = 30
)

// AdvanceBand is an inclusive days-ahead range and its fee percentage.
type AdvanceBand struct {
	MinDays int     `json:"min_days" validate:"gte=1,lte=30"`
	MaxDays int     `json:"max_days" validate:"gte=1,lte=30,gtefield=MinDays"`
	FeePct  float64 `json:"fee_pct" validate:"gte=0,lte=100"`
}

func (b AdvanceBand) Contains(days int) bool {
	return days >= b.MinDays && days <= b.MaxDays
}

func DefaultBands() []AdvanceBand {
	return []AdvanceBand{
		{MinDays: 25, MaxDays: 30, FeePct: 10.0},
		{MinDays: 19, MaxDays: 24, FeePct: 8.0},
		{MinDays: 12, MaxDays: 18, FeePct: 6.0},
		{MinDays: 6, MaxDays: 11, FeePct: 4.0},
		{MinDays: 1, MaxDays: 5, FeePct: 2.5},
	}
}

// FeeConfig is one published version of the fee settings.
type FeeConfig struct {
	ID                 snowflake.ID                     `gorm:"primaryKey" json:"id"`
	Version            int64                            `gorm:"not null;uniqueIndex" json:"version"`
	Active             bool                             `gorm:"not null;index" json:"active"`
	OperationalFeeBase FeeBase                          `gorm:"size:16;not null" json:"operational_fee_base"`
	Bands              datatypes.JSONSlice[AdvanceBand] `json:"bands"`
	Note               string                           `json:"note,omitempty"`
	CreatedAt          time.Time                        `json:"created_at"`
	RetiredAt          *time.Time                       `json:"retired_at,omitempty"`
}

func (FeeConfig) TableName() string { return "fee_configs" }

// BandFor returns the band covering daysAhead. Values outside 1-30 fail
// with ErrInvalidRange.
func (c FeeConfig) BandFor(daysAhead int) (AdvanceBand, error) {
	if daysAhead < MinAdvanceDays || daysAhead > MaxAdvanceDays {
		return AdvanceBand{}, ErrInvalidRange
	}
	for _, band := range c.Bands {
		if band.Contains(daysAhead) {
			return band, nil
		}
	}
	return AdvanceBand{}, ErrBandMissing
}
