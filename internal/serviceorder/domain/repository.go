package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *ServiceOrder) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceOrder, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]ServiceOrder, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ServiceOrder, error)
	// Update writes every mutable field when the stored version still
	// matches order.Version, then advances order.Version.
	Update(ctx context.Context, db *gorm.DB, order *ServiceOrder) (bool, error)
}
