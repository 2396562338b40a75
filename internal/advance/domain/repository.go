package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, advance *AdvanceRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AdvanceRequest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AdvanceRequest, error)
	// Held sums, per invoice, what pending and approved advances draw.
	Held(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID]decimal.Decimal, error)
	// UpdateStatus writes the lifecycle fields when the stored row is still
	// at from and advance.Version, then advances the version.
	UpdateStatus(ctx context.Context, db *gorm.DB, advance *AdvanceRequest, from Status) (bool, error)
}
