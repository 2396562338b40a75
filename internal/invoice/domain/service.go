package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
)

type CreateInvoiceCommand struct {
	Type          Type                      `json:"type" validate:"required,oneof=supplier client"`
	CounterpartID snowflake.ID              `json:"counterpart_id" validate:"required"`
	OrderIDs      []snowflake.ID            `json:"order_ids" validate:"required,min=1,dive,required"`
	PeriodStart   time.Time                 `json:"period_start" validate:"required"`
	PeriodEnd     time.Time                 `json:"period_end" validate:"required"`
	PaymentTiming partydomain.PaymentTiming `json:"payment_timing" validate:"omitempty,oneof=upfront after_closing deferred"`
}

type RemoveOrderCommand struct {
	InvoiceID snowflake.ID `json:"invoice_id" validate:"required"`
	OrderID   snowflake.ID `json:"order_id" validate:"required"`
}

type DeactivateInvoiceCommand struct {
	InvoiceID snowflake.ID `json:"invoice_id" validate:"required"`
	Reason    string       `json:"reason"`
}

type MarkOrderPaidCommand struct {
	InvoiceID snowflake.ID `json:"invoice_id" validate:"required"`
	OrderID   snowflake.ID `json:"order_id" validate:"required"`
	// PaidAt defaults to now.
	PaidAt *time.Time `json:"paid_at"`
}

type Service interface {
	CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (Invoice, error)
	RemoveOrderFromInvoice(ctx context.Context, cmd RemoveOrderCommand) (Invoice, error)
	DeactivateInvoice(ctx context.Context, cmd DeactivateInvoiceCommand) (Invoice, error)
	MarkOrderPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
}
