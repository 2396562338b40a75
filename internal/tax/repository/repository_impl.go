package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/tax/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.TaxConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*domain.TaxConfig, error) {
	var cfg domain.TaxConfig
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("version desc").
		Limit(1).
		Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TaxConfig, error) {
	var cfg domain.TaxConfig
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&cfg).Error; err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) MaxVersion(ctx context.Context, db *gorm.DB) (int64, error) {
	var version int64
	err := db.WithContext(ctx).Model(&domain.TaxConfig{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	return version, err
}

func (r *repo) RetireActive(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Model(&domain.TaxConfig{}).
		Where("active = ?", true).
		Updates(map[string]any{
			"active":     false,
			"retired_at": time.Now().UTC(),
		}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.TaxConfig, error) {
	var configs []domain.TaxConfig
	err := db.WithContext(ctx).Order("version desc").Find(&configs).Error
	return configs, err
}
