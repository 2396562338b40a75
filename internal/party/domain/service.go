package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateClientRequest struct {
	Name             string        `json:"name" validate:"required"`
	Email            string        `json:"email" validate:"omitempty,email"`
	TaxCategories    []TaxCategory `json:"tax_categories" validate:"max=3,dive,oneof=municipais estaduais federais retencao"`
	FeeMode          FeeMode       `json:"fee_mode" validate:"omitempty,oneof=flat variable none"`
	FlatFeeRate      float64       `json:"flat_fee_rate" validate:"gte=0,lte=100"`
	UpfrontRate      *float64      `json:"upfront_rate" validate:"omitempty,gte=0,lte=100"`
	AfterClosingRate *float64      `json:"after_closing_rate" validate:"omitempty,gte=0,lte=100"`
	DeferredRate     *float64      `json:"deferred_rate" validate:"omitempty,gte=0,lte=100"`
	PaymentTermDays  int           `json:"payment_term_days" validate:"gte=0,lte=365"`
}

type CreateSupplierRequest struct {
	Name                   string `json:"name" validate:"required"`
	Email                  string `json:"email" validate:"omitempty,email"`
	NotSimplifiedTaxRegime bool   `json:"not_simplified_tax_regime"`
}

// Service is the Client / Supplier read API the billing core depends on,
// plus the administrative writes used to set parties up.
type Service interface {
	CreateClient(context.Context, CreateClientRequest) (Client, error)
	CreateSupplier(context.Context, CreateSupplierRequest) (Supplier, error)
	GetClient(context.Context, snowflake.ID) (Client, error)
	GetSupplier(context.Context, snowflake.ID) (Supplier, error)
}

var (
	ErrClientNotFound       = errors.New("client_not_found")
	ErrSupplierNotFound     = errors.New("supplier_not_found")
	ErrInvalidTaxCategories = errors.New("invalid_tax_categories")
)
