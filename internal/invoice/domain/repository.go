package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert stores the invoice with its lines and tax lines.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// FindByID loads the invoice with lines ordered by position.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	// ListOpenForSupplier returns active, not fully paid supplier invoices
	// ordered by due date.
	ListOpenForSupplier(ctx context.Context, db *gorm.DB, supplierID snowflake.ID) ([]Invoice, error)
	// Update writes totals, status and flags when the stored version still
	// matches invoice.Version, then advances it.
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	UpdateLine(ctx context.Context, db *gorm.DB, line *Line) error
}
