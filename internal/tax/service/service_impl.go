package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/clock"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/tax/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tax.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Active(ctx context.Context) (domain.TaxConfig, error) {
	cfg, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return domain.TaxConfig{}, err
	}
	if cfg == nil {
		return domain.TaxConfig{}, domain.ErrConfigurationMissing
	}
	return *cfg, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.TaxConfig, error) {
	cfg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.TaxConfig{}, err
	}
	if cfg == nil {
		return domain.TaxConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) List(ctx context.Context) ([]domain.TaxConfig, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Publish(ctx context.Context, req domain.PublishRequest) (domain.TaxConfig, error) {
	if err := validation.Struct(req); err != nil {
		return domain.TaxConfig{}, err
	}
	seen := map[partydomain.TaxCategory]bool{}
	for _, rate := range req.Rates {
		if seen[rate.Category] {
			return domain.TaxConfig{}, fmt.Errorf("%w: %s", domain.ErrDuplicateCategory, rate.Category)
		}
		seen[rate.Category] = true
	}

	var published domain.TaxConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, err := s.repo.MaxVersion(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.repo.RetireActive(ctx, tx); err != nil {
			return err
		}
		published = domain.TaxConfig{
			ID:        s.genID.Generate(),
			Version:   version + 1,
			Active:    true,
			Rates:     req.Rates,
			Note:      req.Note,
			CreatedAt: s.clock.Now(),
		}
		return s.repo.Insert(ctx, tx, &published)
	})
	if db.IsDuplicateKeyErr(err) {
		return domain.TaxConfig{}, domain.ErrConcurrentPublish
	}
	if err != nil {
		return domain.TaxConfig{}, err
	}

	s.log.Info("tax config published",
		zap.String("tax_config_id", published.ID.String()),
		zap.Int64("version", published.Version),
		zap.Int("categories", len(published.Rates)),
	)
	return published, nil
}
