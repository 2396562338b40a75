package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateOrderCommand struct {
	ClientID         snowflake.ID    `json:"client_id" validate:"required"`
	SupplierID       snowflake.ID    `json:"supplier_id" validate:"required"`
	CostCenter       string          `json:"cost_center" validate:"max=128"`
	VehiclePlate     string          `json:"vehicle_plate" validate:"max=16"`
	Description      string          `json:"description"`
	PartsLineID      *snowflake.ID   `json:"parts_line_id"`
	LaborLineID      *snowflake.ID   `json:"labor_line_id"`
	GrossParts       decimal.Decimal `json:"gross_parts" validate:"dgte0"`
	GrossLabor       decimal.Decimal `json:"gross_labor" validate:"dgte0"`
	PartsDiscountPct float64         `json:"parts_discount_pct" validate:"gte=0,lte=100"`
	LaborDiscountPct float64         `json:"labor_discount_pct" validate:"gte=0,lte=100"`
}

// UpdateOrderCommand replaces the editable fields of an unbilled order.
// Client and supplier are fixed at creation.
type UpdateOrderCommand struct {
	ID               snowflake.ID    `json:"id" validate:"required"`
	CostCenter       string          `json:"cost_center" validate:"max=128"`
	VehiclePlate     string          `json:"vehicle_plate" validate:"max=16"`
	Description      string          `json:"description"`
	PartsLineID      *snowflake.ID   `json:"parts_line_id"`
	LaborLineID      *snowflake.ID   `json:"labor_line_id"`
	GrossParts       decimal.Decimal `json:"gross_parts" validate:"dgte0"`
	GrossLabor       decimal.Decimal `json:"gross_labor" validate:"dgte0"`
	PartsDiscountPct float64         `json:"parts_discount_pct" validate:"gte=0,lte=100"`
	LaborDiscountPct float64         `json:"labor_discount_pct" validate:"gte=0,lte=100"`
}

type DeleteOrderCommand struct {
	ID snowflake.ID `json:"id" validate:"required"`
}

type Service interface {
	CreateOrder(context.Context, CreateOrderCommand) (ServiceOrder, error)
	UpdateOrder(context.Context, UpdateOrderCommand) (ServiceOrder, error)
	DeleteOrder(context.Context, DeleteOrderCommand) error
	GetOrder(context.Context, snowflake.ID) (ServiceOrder, error)
	ListOrders(context.Context, ListFilter) ([]ServiceOrder, error)
}
