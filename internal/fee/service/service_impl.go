package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/fee/domain"
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
		log:   p.Log.Named("fee.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Active(ctx context.Context) (domain.FeeConfig, error) {
	cfg, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if cfg == nil {
		return domain.FeeConfig{}, domain.ErrConfigurationMissing
	}
	return *cfg, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.FeeConfig, error) {
	cfg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if cfg == nil {
		return domain.FeeConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) List(ctx context.Context) ([]domain.FeeConfig, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Publish(ctx context.Context, req domain.PublishRequest) (domain.FeeConfig, error) {
	if err := validation.Struct(req); err != nil {
		return domain.FeeConfig{}, err
	}
	if err := domain.ValidateBands(req.Bands); err != nil {
		return domain.FeeConfig{}, err
	}
	return s.publish(ctx, req)
}

func (s *Service) EnsureDefault(ctx context.Context) (domain.FeeConfig, error) {
	existing, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	cfg, err := s.publish(ctx, domain.PublishRequest{
		OperationalFeeBase: domain.FeeBaseNetTotal,
		Bands:              domain.DefaultBands(),
		Note:               "default",
	})
	if errors.Is(err, domain.ErrConcurrentPublish) {
		return s.Active(ctx)
	}
	return cfg, err
}

func (s *Service) publish(ctx context.Context, req domain.PublishRequest) (domain.FeeConfig, error) {
	var published domain.FeeConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, err := s.repo.MaxVersion(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.repo.RetireActive(ctx, tx); err != nil {
			return err
		}
		published = domain.FeeConfig{
			ID:                 s.genID.Generate(),
			Version:            version + 1,
			Active:             true,
			OperationalFeeBase: req.OperationalFeeBase,
			Bands:              req.Bands,
			Note:               req.Note,
			CreatedAt:          s.clock.Now(),
		}
		return s.repo.Insert(ctx, tx, &published)
	})
	if db.IsDuplicateKeyErr(err) {
		return domain.FeeConfig{}, domain.ErrConcurrentPublish
	}
	if err != nil {
		return domain.FeeConfig{}, err
	}

	s.log.Info("fee config published",
		zap.String("fee_config_id", published.ID.String()),
		zap.Int64("version", published.Version),
		zap.String("operational_fee_base", string(published.OperationalFeeBase)),
	)
	return published, nil
}
