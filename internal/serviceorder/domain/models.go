package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusAuthorized      Status = "authorized"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
)

// Claim names the invoice direction holding an order. An order can be
// claimed once per direction.
type Claim string

const (
	ClaimSupplier Claim = "supplier"
	ClaimClient   Claim = "client"
)

func (c Claim) Valid() bool {
	return c == ClaimSupplier || c == ClaimClient
}

func (c Claim) Other() Claim {
	if c == ClaimSupplier {
		return ClaimClient
	}
	return ClaimSupplier
}

// Column is the order column holding the invoice reference for c.
func (c Claim) Column() string {
	if c == ClaimSupplier {
		return "supplier_invoice_id"
	}
	return "client_invoice_id"
}

type ServiceOrder struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Code         string       `gorm:"size:32;uniqueIndex;not null" json:"code"`
	ClientID     snowflake.ID `gorm:"not null;index" json:"client_id"`
	SupplierID   snowflake.ID `gorm:"not null;index" json:"supplier_id"`
	CostCenter   string       `json:"cost_center,omitempty"`
	VehiclePlate string       `json:"vehicle_plate,omitempty"`
	Description  string       `json:"description,omitempty"`

	PartsContractID *snowflake.ID `json:"parts_contract_id,omitempty"`
	PartsLineID     *snowflake.ID `gorm:"index" json:"parts_line_id,omitempty"`
	LaborContractID *snowflake.ID `json:"labor_contract_id,omitempty"`
	LaborLineID     *snowflake.ID `gorm:"index" json:"labor_line_id,omitempty"`

	GrossParts       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_parts"`
	GrossLabor       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_labor"`
	PartsDiscountPct float64         `gorm:"not null" json:"parts_discount_pct"`
	LaborDiscountPct float64         `gorm:"not null" json:"labor_discount_pct"`
	DiscountedParts  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discounted_parts"`
	DiscountedLabor  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discounted_labor"`
	FinalValue       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"final_value"`

	Status            Status        `gorm:"size:32;not null;index" json:"status"`
	SupplierInvoiceID *snowflake.ID `gorm:"index" json:"supplier_invoice_id,omitempty"`
	ClientInvoiceID   *snowflake.ID `gorm:"index" json:"client_invoice_id,omitempty"`
	Active            bool          `gorm:"not null" json:"active"`
	Version           int64         `gorm:"not null" json:"version"`

	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (o *ServiceOrder) InvoiceRef(c Claim) *snowflake.ID {
	if c == ClaimSupplier {
		return o.SupplierInvoiceID
	}
	return o.ClientInvoiceID
}

func (o *ServiceOrder) setInvoiceRef(c Claim, id *snowflake.ID) {
	if c == ClaimSupplier {
		o.SupplierInvoiceID = id
		return
	}
	o.ClientInvoiceID = id
}

// Claimed reports whether any invoice holds the order.
func (o *ServiceOrder) Claimed() bool {
	return o.SupplierInvoiceID != nil || o.ClientInvoiceID != nil
}

// EligibleFor reports whether an invoice of direction c may take the order:
// it must be active, free in that direction, and either Authorized or
// already held by the other direction.
func (o *ServiceOrder) EligibleFor(c Claim) bool {
	if !o.Active || o.InvoiceRef(c) != nil {
		return false
	}
	return o.Status == StatusAuthorized || o.InvoiceRef(c.Other()) != nil
}

// ClaimFor marks the order as billed by invoiceID. settle moves it straight
// to Paid.
func (o *ServiceOrder) ClaimFor(c Claim, invoiceID snowflake.ID, settle bool) error {
	if !o.EligibleFor(c) {
		return ErrOrderUnavailable
	}
	id := invoiceID
	o.setInvoiceRef(c, &id)
	switch {
	case settle:
		o.Status = StatusPaid
	case o.Status == StatusAuthorized:
		o.Status = StatusAwaitingPayment
	}
	return nil
}

// Unclaim drops invoiceID's hold. The order returns to Authorized only when
// no invoice of the other direction still holds it.
func (o *ServiceOrder) Unclaim(c Claim, invoiceID snowflake.ID) error {
	ref := o.InvoiceRef(c)
	if ref == nil || *ref != invoiceID {
		return ErrNotClaimedByInvoice
	}
	o.setInvoiceRef(c, nil)
	if o.InvoiceRef(c.Other()) == nil {
		o.Status = StatusAuthorized
	}
	return nil
}

func (o *ServiceOrder) MarkPaid() error {
	switch o.Status {
	case StatusPaid:
		return nil
	case StatusAwaitingPayment:
		o.Status = StatusPaid
		return nil
	default:
		return transitionError(o.Status, StatusPaid)
	}
}

// Reservations is the commitment consumption the order holds, per line.
func (o *ServiceOrder) Reservations() map[snowflake.ID]decimal.Decimal {
	out := map[snowflake.ID]decimal.Decimal{}
	add := func(line *snowflake.ID, amount decimal.Decimal) {
		if line == nil || !amount.IsPositive() {
			return
		}
		out[*line] = out[*line].Add(amount)
	}
	add(o.PartsLineID, o.DiscountedParts)
	add(o.LaborLineID, o.DiscountedLabor)
	return out
}

type ListFilter struct {
	ClientID   snowflake.ID
	SupplierID snowflake.ID
	Status     Status
	// Unclaimed limits the result to orders free for this direction.
	Unclaimed Claim
}
