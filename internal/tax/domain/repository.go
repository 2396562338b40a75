package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *TaxConfig) error
	FindActive(ctx context.Context, db *gorm.DB) (*TaxConfig, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxConfig, error)
	MaxVersion(ctx context.Context, db *gorm.DB) (int64, error)
	RetireActive(ctx context.Context, db *gorm.DB) error
	List(ctx context.Context, db *gorm.DB) ([]TaxConfig, error)
}
