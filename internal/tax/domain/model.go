package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"gorm.io/datatypes"
)

// JurisdictionRate holds the percentage rates (0-100) withheld for one
// category.
type JurisdictionRate struct {
	Category partydomain.TaxCategory `json:"category" validate:"required,oneof=municipais estaduais federais retencao"`
	IR       float64                 `json:"ir" validate:"gte=0,lte=100"`
	PIS      float64                 `json:"pis" validate:"gte=0,lte=100"`
	COFINS   float64                 `json:"cofins" validate:"gte=0,lte=100"`
	CSLL     float64                 `json:"csll" validate:"gte=0,lte=100"`
}

// TaxConfig is one published version of the withholding rate table. Exactly
// one version is active at a time; invoices keep the id they were computed
// with.
type TaxConfig struct {
	ID        snowflake.ID                          `gorm:"primaryKey" json:"id"`
	Version   int64                                 `gorm:"not null;uniqueIndex" json:"version"`
	Active    bool                                  `gorm:"not null;index" json:"active"`
	Rates     datatypes.JSONSlice[JurisdictionRate] `json:"rates"`
	Note      string                                `json:"note,omitempty"`
	CreatedAt time.Time                             `json:"created_at"`
	RetiredAt *time.Time                            `json:"retired_at,omitempty"`
}

func (TaxConfig) TableName() string { return "tax_configs" }

func (c TaxConfig) Rate(category partydomain.TaxCategory) (JurisdictionRate, bool) {
	for _, r := range c.Rates {
		if r.Category == category {
			return r, true
		}
	}
	return JurisdictionRate{}, false
}
