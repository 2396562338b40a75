package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type PublishRequest struct {
	Rates []JurisdictionRate `json:"rates" validate:"required,min=1,dive"`
	Note  string             `json:"note"`
}

// Service is the TaxConfig read API plus the administrative publish.
type Service interface {
	// Active returns the current version or ErrConfigurationMissing.
	Active(ctx context.Context) (TaxConfig, error)
	Get(ctx context.Context, id snowflake.ID) (TaxConfig, error)
	List(ctx context.Context) ([]TaxConfig, error)
	// Publish stores a new version and makes it the only active one.
	Publish(ctx context.Context, req PublishRequest) (TaxConfig, error)
}
