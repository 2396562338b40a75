package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertContract(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	// BumpContractVersion advances the contract version when it still equals
	// version. It reports false when another writer got there first.
	BumpContractVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64) (bool, error)

	InsertAddendum(ctx context.Context, db *gorm.DB, addendum *Addendum) error
	ListAddenda(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]Addendum, error)

	InsertLine(ctx context.Context, db *gorm.DB, line *CommitmentLine) error
	FindLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommitmentLine, error)
	ListLines(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]CommitmentLine, error)
	// UpdateLineBalance writes consumed, cancelled and active when the stored
	// version still equals line.Version, then increments it.
	UpdateLineBalance(ctx context.Context, db *gorm.DB, line *CommitmentLine) (bool, error)
}
