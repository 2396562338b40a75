package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type LineType string

const (
	LineTypeParts LineType = "parts"
	LineTypeLabor LineType = "labor"
	LineTypeBoth  LineType = "both"
)

// Accepts reports whether a line of type t may fund the given portion of an
// order (parts or labor).
func (t LineType) Accepts(portion LineType) bool {
	return t == LineTypeBoth || t == portion
}

type Contract struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClientID   snowflake.ID    `gorm:"not null;index" json:"client_id"`
	Reference  string          `json:"reference,omitempty"`
	Value      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"value"`
	ValidFrom  time.Time       `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time       `gorm:"not null" json:"valid_until"`
	Active     bool            `gorm:"not null" json:"active"`
	Version    int64           `gorm:"not null" json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UsableAt reports whether the contract accepts new commitments or
// reservations at t.
func (c Contract) UsableAt(t time.Time) bool {
	return c.Active && !t.Before(c.ValidFrom) && !t.After(c.ValidUntil)
}

type Addendum struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ContractID snowflake.ID    `gorm:"not null;index" json:"contract_id"`
	Value      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"value"`
	ValidFrom  time.Time       `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time       `gorm:"not null" json:"valid_until"`
	Active     bool            `gorm:"not null" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Addendum) TableName() string { return "contract_addenda" }

// CommitmentLine is a capped spending authorization under a contract.
type CommitmentLine struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ContractID snowflake.ID    `gorm:"not null;index" json:"contract_id"`
	Type       LineType        `gorm:"not null" json:"type"`
	Authorized decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"authorized"`
	Cancelled  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cancelled"`
	Consumed   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"consumed"`
	Active     bool            `gorm:"not null" json:"active"`
	Version    int64           `gorm:"not null" json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Available is authorized minus cancelled minus consumed.
func (l CommitmentLine) Available() decimal.Decimal {
	return l.Authorized.Sub(l.Cancelled).Sub(l.Consumed)
}

// Committed is the share of contract capacity the line holds. Consumption
// is a sub-allocation of the line and does not change it.
func (l CommitmentLine) Committed() decimal.Decimal {
	return l.Authorized.Sub(l.Cancelled)
}

// Capacity summarizes a contract's headroom for new commitment lines.
type Capacity struct {
	ContractID snowflake.ID    `json:"contract_id"`
	Total      decimal.Decimal `json:"total"`
	Committed  decimal.Decimal `json:"committed"`
	Free       decimal.Decimal `json:"free"`
}
