package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/commitment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertContract(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repo) FindContract(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	var contract domain.Contract
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&contract).Error; err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, nil
	}
	return &contract, nil
}

func (r *repo) BumpContractVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Contract{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertAddendum(ctx context.Context, db *gorm.DB, addendum *domain.Addendum) error {
	return db.WithContext(ctx).Create(addendum).Error
}

func (r *repo) ListAddenda(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]domain.Addendum, error) {
	var addenda []domain.Addendum
	err := db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at asc, id asc").
		Find(&addenda).Error
	return addenda, err
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.CommitmentLine) error {
	return db.WithContext(ctx).Create(line).Error
}

func (r *repo) FindLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommitmentLine, error) {
	var line domain.CommitmentLine
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&line).Error; err != nil {
		return nil, err
	}
	if line.ID == 0 {
		return nil, nil
	}
	return &line, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]domain.CommitmentLine, error) {
	var lines []domain.CommitmentLine
	err := db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at asc, id asc").
		Find(&lines).Error
	return lines, err
}

func (r *repo) UpdateLineBalance(ctx context.Context, db *gorm.DB, line *domain.CommitmentLine) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.CommitmentLine{}).
		Where("id = ? AND version = ?", line.ID, line.Version).
		Updates(map[string]any{
			"consumed":   line.Consumed,
			"cancelled":  line.Cancelled,
			"active":     line.Active,
			"version":    line.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	line.Version++
	line.UpdatedAt = now
	return true, nil
}
