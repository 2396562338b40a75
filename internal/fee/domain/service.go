package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type PublishRequest struct {
	OperationalFeeBase FeeBase       `json:"operational_fee_base" validate:"required,oneof=net_total after_tax"`
	Bands              []AdvanceBand `json:"bands" validate:"required,min=1,dive"`
	Note               string        `json:"note"`
}

type Service interface {
	// Active returns the current version or ErrConfigurationMissing.
	Active(ctx context.Context) (FeeConfig, error)
	Get(ctx context.Context, id snowflake.ID) (FeeConfig, error)
	List(ctx context.Context) ([]FeeConfig, error)
	Publish(ctx context.Context, req PublishRequest) (FeeConfig, error)
	// EnsureDefault publishes the default bands with the net_total base when
	// no version exists yet.
	EnsureDefault(ctx context.Context) (FeeConfig, error)
}
