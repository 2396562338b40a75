package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TaxCategory values are the jurisdiction keys stored on clients and used
// to look up withholding rates.
type TaxCategory string

const (
	TaxMunicipal TaxCategory = "municipais"
	TaxState     TaxCategory = "estaduais"
	TaxFederal   TaxCategory = "federais"
	TaxRetention TaxCategory = "retencao"
)

func (c TaxCategory) Valid() bool {
	switch c {
	case TaxMunicipal, TaxState, TaxFederal, TaxRetention:
		return true
	}
	return false
}

type FeeMode string

const (
	FeeModeFlat     FeeMode = "flat"
	FeeModeVariable FeeMode = "variable"
	FeeModeNone     FeeMode = "none"
)

// PaymentTiming selects the variable operational fee rate of an invoice.
type PaymentTiming string

const (
	TimingUpfront      PaymentTiming = "upfront"
	TimingAfterClosing PaymentTiming = "after_closing"
	TimingDeferred     PaymentTiming = "deferred"
)

func (t PaymentTiming) Valid() bool {
	switch t {
	case TimingUpfront, TimingAfterClosing, TimingDeferred:
		return true
	}
	return false
}

const (
	DefaultUpfrontRate      = 15.0
	DefaultAfterClosingRate = 13.0
	DefaultDeferredRate     = 0.0

	MaxTaxCategories = 3
)

type Client struct {
	ID               snowflake.ID                     `gorm:"primaryKey" json:"id"`
	Name             string                           `gorm:"not null" json:"name"`
	Email            string                           `json:"email,omitempty"`
	TaxCategories    datatypes.JSONSlice[TaxCategory] `json:"tax_categories"`
	FeeMode          FeeMode                          `gorm:"not null" json:"fee_mode"`
	FlatFeeRate      float64                          `gorm:"not null;default:0" json:"flat_fee_rate"`
	UpfrontRate      *float64                         `json:"upfront_rate,omitempty"`
	AfterClosingRate *float64                         `json:"after_closing_rate,omitempty"`
	DeferredRate     *float64                         `json:"deferred_rate,omitempty"`
	PaymentTermDays  int                              `gorm:"not null;default:0" json:"payment_term_days"`
	Metadata         datatypes.JSONMap                `json:"metadata,omitempty"`
	CreatedAt        time.Time                        `json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

// VariableRate returns the configured rate for timing, falling back to
// 15 / 13 / 0 when unset.
func (c Client) VariableRate(timing PaymentTiming) float64 {
	switch timing {
	case TimingUpfront:
		return rateOr(c.UpfrontRate, DefaultUpfrontRate)
	case TimingAfterClosing:
		return rateOr(c.AfterClosingRate, DefaultAfterClosingRate)
	case TimingDeferred:
		return rateOr(c.DeferredRate, DefaultDeferredRate)
	}
	return 0
}

// PaymentTerm returns the client's payment term, or def when not set.
func (c Client) PaymentTerm(def int) int {
	if c.PaymentTermDays > 0 {
		return c.PaymentTermDays
	}
	return def
}

func rateOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

type Supplier struct {
	ID                     snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name                   string            `gorm:"not null" json:"name"`
	Email                  string            `json:"email,omitempty"`
	NotSimplifiedTaxRegime bool              `gorm:"not null;default:false" json:"not_simplified_tax_regime"`
	Metadata               datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}
