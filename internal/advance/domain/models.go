// Package domain holds supplier advance requests: pricing by days ahead,
// allocation over open invoices and the request lifecycle.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Holding statuses keep their drawn amounts reserved on the invoices.
var HoldingStatuses = []Status{StatusPending, StatusApproved}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusPaid},
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type AdvanceRequest struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	SupplierID      snowflake.ID    `gorm:"not null;index" json:"supplier_id"`
	RequestedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"requested_amount"`
	FeePct          float64         `gorm:"not null" json:"fee_pct"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"discount_amount"`
	NetReceivable   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"net_receivable"`
	DesiredDate     time.Time       `gorm:"not null" json:"desired_date"`
	ScheduledDate   time.Time       `gorm:"not null" json:"scheduled_date"`
	DaysAhead       int             `gorm:"not null" json:"days_ahead"`
	FeeConfigID     snowflake.ID    `gorm:"not null" json:"fee_config_id"`

	Status       Status     `gorm:"size:16;not null;index" json:"status"`
	Version      int64      `gorm:"not null" json:"version"`
	Note         string     `json:"note,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Allocations []Allocation `gorm:"foreignKey:AdvanceID" json:"allocations"`
}

func (AdvanceRequest) TableName() string { return "advance_requests" }

// Allocation is the amount an advance draws from one invoice.
type Allocation struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	AdvanceID     snowflake.ID    `gorm:"not null;index" json:"advance_id"`
	InvoiceID     snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	InvoiceNumber string          `gorm:"size:32;not null" json:"invoice_number"`
	Position      int             `gorm:"not null" json:"position"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}

func (Allocation) TableName() string { return "advance_allocations" }

// Transition moves the request to status to, stamping the matching
// timestamp.
func (a *AdvanceRequest) Transition(to Status, now time.Time) error {
	if !a.Status.CanTransition(to) {
		return transitionError(a.Status, to)
	}
	at := now
	switch to {
	case StatusApproved, StatusRejected:
		a.DecidedAt = &at
	case StatusPaid:
		a.PaidAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
	}
	a.Status = to
	return nil
}

type ListFilter struct {
	SupplierID snowflake.ID
	Status     Status
}
