package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertClient(ctx context.Context, db *gorm.DB, client *Client) error
	InsertSupplier(ctx context.Context, db *gorm.DB, supplier *Supplier) error
	FindClient(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Client, error)
	FindSupplier(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Supplier, error)
	FindClients(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]*Client, error)
}
