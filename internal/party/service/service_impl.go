package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("party.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreateClient(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Client{}, err
	}

	categories, err := normalizeCategories(req.TaxCategories)
	if err != nil {
		return domain.Client{}, err
	}

	feeMode := req.FeeMode
	if feeMode == "" {
		feeMode = domain.FeeModeNone
	}

	now := time.Now().UTC()
	client := domain.Client{
		ID:               s.genID.Generate(),
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.TrimSpace(req.Email),
		TaxCategories:    categories,
		FeeMode:          feeMode,
		FlatFeeRate:      req.FlatFeeRate,
		UpfrontRate:      req.UpfrontRate,
		AfterClosingRate: req.AfterClosingRate,
		DeferredRate:     req.DeferredRate,
		PaymentTermDays:  req.PaymentTermDays,
		Metadata:         datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertClient(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}

	s.log.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("fee_mode", string(client.FeeMode)),
	)
	return client, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.CreateSupplierRequest) (domain.Supplier, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Supplier{}, err
	}

	now := time.Now().UTC()
	supplier := domain.Supplier{
		ID:                     s.genID.Generate(),
		Name:                   strings.TrimSpace(req.Name),
		Email:                  strings.TrimSpace(req.Email),
		NotSimplifiedTaxRegime: req.NotSimplifiedTaxRegime,
		Metadata:               datatypes.JSONMap{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.InsertSupplier(ctx, s.db, &supplier); err != nil {
		return domain.Supplier{}, err
	}

	s.log.Info("supplier created", zap.String("supplier_id", supplier.ID.String()))
	return supplier, nil
}

func (s *Service) GetClient(ctx context.Context, id snowflake.ID) (domain.Client, error) {
	client, err := s.repo.FindClient(ctx, s.db, id)
	if err != nil {
		return domain.Client{}, err
	}
	if client == nil {
		return domain.Client{}, domain.ErrClientNotFound
	}
	return *client, nil
}

func (s *Service) GetSupplier(ctx context.Context, id snowflake.ID) (domain.Supplier, error) {
	supplier, err := s.repo.FindSupplier(ctx, s.db, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	if supplier == nil {
		return domain.Supplier{}, domain.ErrSupplierNotFound
	}
	return *supplier, nil
}

// normalizeCategories drops duplicates and rejects unknown or too many categories.
func normalizeCategories(in []domain.TaxCategory) (datatypes.JSONSlice[domain.TaxCategory], error) {
	seen := map[domain.TaxCategory]bool{}
	out := make(datatypes.JSONSlice[domain.TaxCategory], 0, len(in))
	for _, c := range in {
		if !c.Valid() {
			return nil, domain.ErrInvalidTaxCategories
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) > domain.MaxTaxCategories {
		return nil, domain.ErrInvalidTaxCategories
	}
	return out, nil
}
