package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PreviewCommand struct {
	SupplierID      snowflake.ID    `json:"supplier_id" validate:"required"`
	RequestedAmount decimal.Decimal `json:"requested_amount" validate:"dgt0"`
	DesiredDate     time.Time       `json:"desired_date" validate:"required"`
}

type CreateAdvanceCommand struct {
	SupplierID      snowflake.ID    `json:"supplier_id" validate:"required"`
	RequestedAmount decimal.Decimal `json:"requested_amount" validate:"dgt0"`
	DesiredDate     time.Time       `json:"desired_date" validate:"required"`
	Note            string          `json:"note" validate:"max=500"`
}

type ApproveAdvanceCommand struct {
	ID snowflake.ID `json:"id" validate:"required"`
}

type RejectAdvanceCommand struct {
	ID     snowflake.ID `json:"id" validate:"required"`
	Reason string       `json:"reason" validate:"max=500"`
}

type PayAdvanceCommand struct {
	ID snowflake.ID `json:"id" validate:"required"`
}

// CancelAdvanceCommand is issued by the supplier that requested the advance.
type CancelAdvanceCommand struct {
	ID         snowflake.ID `json:"id" validate:"required"`
	SupplierID snowflake.ID `json:"supplier_id" validate:"required"`
}

type Service interface {
	CalculateAdvancePreview(ctx context.Context, cmd PreviewCommand) (Preview, error)
	CreateAdvanceRequest(ctx context.Context, cmd CreateAdvanceCommand) (AdvanceRequest, error)
	ApproveAdvance(ctx context.Context, cmd ApproveAdvanceCommand) (AdvanceRequest, error)
	RejectAdvance(ctx context.Context, cmd RejectAdvanceCommand) (AdvanceRequest, error)
	PayAdvance(ctx context.Context, cmd PayAdvanceCommand) (AdvanceRequest, error)
	CancelAdvance(ctx context.Context, cmd CancelAdvanceCommand) (AdvanceRequest, error)
	GetAdvance(ctx context.Context, id snowflake.ID) (AdvanceRequest, error)
	ListAdvances(ctx context.Context, filter ListFilter) ([]AdvanceRequest, error)
}
