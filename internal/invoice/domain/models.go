// Package domain contains the invoice aggregate and its totals arithmetic.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	"gorm.io/datatypes"
)

// Type is the billing direction of an invoice.
type Type string

const (
	TypeSupplier Type = "supplier"
	TypeClient   Type = "client"
)

func (t Type) Valid() bool {
	return t == TypeSupplier || t == TypeClient
}

// Claim is the order claim marker this invoice type sets.
func (t Type) Claim() serviceorderdomain.Claim {
	if t == TypeSupplier {
		return serviceorderdomain.ClaimSupplier
	}
	return serviceorderdomain.ClaimClient
}

// Status is derived from amount paid against amount due.
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPartiallyPaid   Status = "partially_paid"
	StatusPaid            Status = "paid"
)

type Invoice struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number     string        `gorm:"size:32;uniqueIndex;not null" json:"number"`
	Type       Type          `gorm:"size:16;not null;index" json:"type"`
	SupplierID *snowflake.ID `gorm:"index" json:"supplier_id,omitempty"`
	ClientID   *snowflake.ID `gorm:"index" json:"client_id,omitempty"`
	// FeeClientID is the client of the first order; its fee settings price
	// the whole invoice.
	FeeClientID snowflake.ID `gorm:"not null" json:"fee_client_id"`

	PeriodStart   time.Time                 `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time                 `gorm:"not null" json:"period_end"`
	DueAt         time.Time                 `gorm:"not null;index" json:"due_at"`
	PaymentTiming partydomain.PaymentTiming `gorm:"size:16" json:"payment_timing,omitempty"`

	TaxConfigID snowflake.ID      `gorm:"not null" json:"tax_config_id"`
	FeeConfigID snowflake.ID      `gorm:"not null" json:"fee_config_id"`
	FeeBase     feedomain.FeeBase `gorm:"size:16;not null" json:"fee_base"`
	FeeRatePct  float64           `gorm:"not null" json:"fee_rate_pct"`

	GrossTotal      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_total"`
	DiscountTotal   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discount_total"`
	NetTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"net_total"`
	TaxTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_total"`
	FeeTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"fee_total"`
	AmountDue       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_due"`
	AmountAdvanced  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_advanced"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_paid"`
	AmountRemaining decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_remaining"`

	Status        Status     `gorm:"size:32;not null;index" json:"status"`
	Active        bool       `gorm:"not null;index" json:"active"`
	Version       int64      `gorm:"not null" json:"version"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`

	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Lines    []Line    `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`
	TaxLines []TaxLine `gorm:"foreignKey:InvoiceID" json:"tax_lines,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

// Counterpart is the supplier or client the invoice is addressed to.
func (inv *Invoice) Counterpart() snowflake.ID {
	if inv.Type == TypeSupplier && inv.SupplierID != nil {
		return *inv.SupplierID
	}
	if inv.ClientID != nil {
		return *inv.ClientID
	}
	return 0
}

// Line is one order on an invoice. NetValue is the order's value snapshot
// used by the proportional payment rule.
type Line struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	OrderID       snowflake.ID    `gorm:"not null;index" json:"order_id"`
	Position      int             `gorm:"not null" json:"position"`
	OrderCode     string          `gorm:"size:32;not null" json:"order_code"`
	GrossValue    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_value"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discount_value"`
	NetValue      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"net_value"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"tax_amount"`
	Paid          bool            `gorm:"not null" json:"paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	RemovedAt     *time.Time      `json:"removed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Line) TableName() string { return "invoice_lines" }

func (l Line) Removed() bool { return l.RemovedAt != nil }

// TaxLine is the withholding of one category on one order.
type TaxLine struct {
	ID        snowflake.ID            `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID            `gorm:"not null;index" json:"invoice_id"`
	OrderID   snowflake.ID            `gorm:"not null;index" json:"order_id"`
	Category  partydomain.TaxCategory `gorm:"size:16;not null" json:"category"`
	Parts     decimal.Decimal         `gorm:"type:decimal(20,4);not null" json:"parts"`
	Labor     decimal.Decimal         `gorm:"type:decimal(20,4);not null" json:"labor"`
	Combined  decimal.Decimal         `gorm:"type:decimal(20,4);not null" json:"combined"`
	Amount    decimal.Decimal         `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt time.Time               `json:"created_at"`
}

func (TaxLine) TableName() string { return "invoice_tax_lines" }

type ListFilter struct {
	Type       Type
	SupplierID snowflake.ID
	ClientID   snowflake.ID
	Status     Status
	// OnlyActive hides deactivated invoices.
	OnlyActive bool
}
