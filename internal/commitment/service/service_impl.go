package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/commitment/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errVersionConflict = errors.New("version_conflict")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	Policy     *config.PolicyHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	policy     *config.PolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("commitment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateContract(ctx context.Context, req domain.CreateContractRequest) (domain.Contract, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Contract{}, err
	}

	now := s.clock.Now()
	contract := domain.Contract{
		ID:         s.genID.Generate(),
		ClientID:   req.ClientID,
		Reference:  strings.TrimSpace(req.Reference),
		Value:      req.Value,
		ValidFrom:  req.ValidFrom.UTC(),
		ValidUntil: req.ValidUntil.UTC(),
		Active:     true,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertContract(ctx, s.db, &contract); err != nil {
		return domain.Contract{}, err
	}

	s.logger(ctx).Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("client_id", contract.ClientID.String()),
		zap.String("value", contract.Value.String()),
	)
	return contract, nil
}

func (s *Service) AddAddendum(ctx context.Context, req domain.AddAddendumRequest) (domain.Addendum, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Addendum{}, err
	}

	contract, err := s.repo.FindContract(ctx, s.db, req.ContractID)
	if err != nil {
		return domain.Addendum{}, err
	}
	if contract == nil {
		return domain.Addendum{}, domain.ErrContractNotFound
	}

	addendum := domain.Addendum{
		ID:         s.genID.Generate(),
		ContractID: contract.ID,
		Value:      req.Value,
		ValidFrom:  req.ValidFrom.UTC(),
		ValidUntil: req.ValidUntil.UTC(),
		Active:     true,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.InsertAddendum(ctx, s.db, &addendum); err != nil {
		return domain.Addendum{}, err
	}
	return addendum, nil
}

// CreateCommitmentLine checks the new line against the contract's free
// capacity. The contract version is bumped in the same transaction so two
// concurrent creations cannot both pass the check.
func (s *Service) CreateCommitmentLine(ctx context.Context, req domain.CreateLineRequest) (domain.CommitmentLine, error) {
	if err := validation.Struct(req); err != nil {
		return domain.CommitmentLine{}, err
	}

	attempts := s.policy.Get().CASMaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		var created domain.CommitmentLine
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			contract, err := s.repo.FindContract(ctx, tx, req.ContractID)
			if err != nil {
				return err
			}
			if contract == nil {
				return domain.ErrContractNotFound
			}
			now := s.clock.Now()
			if !contract.UsableAt(now) {
				return domain.ErrContractInactive
			}

			addenda, err := s.repo.ListAddenda(ctx, tx, contract.ID)
			if err != nil {
				return err
			}
			lines, err := s.repo.ListLines(ctx, tx, contract.ID)
			if err != nil {
				return err
			}
			capacity := domain.ContractCapacity(*contract, addenda, lines)
			if req.Authorized.GreaterThan(capacity.Free) {
				return domain.ErrInsufficientCapacity
			}

			ok, err := s.repo.BumpContractVersion(ctx, tx, contract.ID, contract.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}

			created = domain.CommitmentLine{
				ID:         s.genID.Generate(),
				ContractID: contract.ID,
				Type:       req.Type,
				Authorized: req.Authorized,
				Cancelled:  decimal.Zero,
				Consumed:   decimal.Zero,
				Active:     true,
				Version:    1,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			return s.repo.InsertLine(ctx, tx, &created)
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return domain.CommitmentLine{}, err
		}

		s.logger(ctx).Info("commitment line created",
			zap.String("line_id", created.ID.String()),
			zap.String("contract_id", created.ContractID.String()),
			zap.String("authorized", created.Authorized.String()),
		)
		return created, nil
	}
	return domain.CommitmentLine{}, domain.ErrConcurrentUpdate
}

func (s *Service) CancelCommitment(ctx context.Context, req domain.CancelCommitmentRequest) (domain.CommitmentLine, error) {
	if err := validation.Struct(req); err != nil {
		return domain.CommitmentLine{}, err
	}

	line, err := s.mutateLine(ctx, req.LineID, func(line *domain.CommitmentLine) error {
		return domain.Cancel(line, req.Cancelled)
	})
	if err != nil {
		return domain.CommitmentLine{}, err
	}

	s.logger(ctx).Info("commitment cancelled",
		zap.String("line_id", line.ID.String()),
		zap.String("cancelled", line.Cancelled.String()),
		zap.Bool("active", line.Active),
	)
	return line, nil
}

func (s *Service) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.CommitmentLine, error) {
	if err := validation.Struct(req); err != nil {
		return domain.CommitmentLine{}, err
	}

	line, err := s.loadLine(ctx, req.LineID)
	if err != nil {
		return domain.CommitmentLine{}, err
	}
	contract, err := s.repo.FindContract(ctx, s.db, line.ContractID)
	if err != nil {
		return domain.CommitmentLine{}, err
	}
	if contract == nil || !contract.UsableAt(s.clock.Now()) {
		return domain.CommitmentLine{}, domain.ErrContractInactive
	}
	if req.Amount.IsZero() {
		return *line, nil
	}

	updated, err := s.mutateLine(ctx, req.LineID, func(line *domain.CommitmentLine) error {
		return domain.Reserve(line, req.Amount)
	})
	switch {
	case err == nil:
		s.obsMetrics.RecordReservation(ctx, "ok")
	case errors.Is(err, domain.ErrInsufficientBalance):
		s.obsMetrics.RecordReservation(ctx, "insufficient")
	case errors.Is(err, domain.ErrConcurrentUpdate):
		s.obsMetrics.RecordReservation(ctx, "conflict")
	}
	if err != nil {
		return domain.CommitmentLine{}, err
	}
	return updated, nil
}

// Release never fails on over-release: consumption is clamped at zero and
// the clamp is logged so caller bugs stay visible.
func (s *Service) Release(ctx context.Context, req domain.ReleaseRequest) (domain.CommitmentLine, error) {
	if err := validation.Struct(req); err != nil {
		return domain.CommitmentLine{}, err
	}
	if req.Amount.IsZero() {
		line, err := s.loadLine(ctx, req.LineID)
		if err != nil {
			return domain.CommitmentLine{}, err
		}
		return *line, nil
	}

	var clamped bool
	line, err := s.mutateLine(ctx, req.LineID, func(line *domain.CommitmentLine) error {
		var err error
		clamped, err = domain.Release(line, req.Amount)
		return err
	})
	if err != nil {
		return domain.CommitmentLine{}, err
	}

	s.obsMetrics.RecordRelease(ctx, clamped)
	if clamped {
		s.logger(ctx).Warn("release exceeded consumed value, clamped at zero",
			zap.String("line_id", line.ID.String()),
			zap.String("amount", req.Amount.String()),
		)
	}
	return line, nil
}

func (s *Service) GetContract(ctx context.Context, id snowflake.ID) (domain.Contract, error) {
	contract, err := s.repo.FindContract(ctx, s.db, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if contract == nil {
		return domain.Contract{}, domain.ErrContractNotFound
	}
	return *contract, nil
}

func (s *Service) GetLine(ctx context.Context, id snowflake.ID) (domain.CommitmentLine, error) {
	line, err := s.loadLine(ctx, id)
	if err != nil {
		return domain.CommitmentLine{}, err
	}
	return *line, nil
}

func (s *Service) Available(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	line, err := s.loadLine(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return line.Available(), nil
}

func (s *Service) ContractCapacity(ctx context.Context, contractID snowflake.ID) (domain.Capacity, error) {
	contract, err := s.repo.FindContract(ctx, s.db, contractID)
	if err != nil {
		return domain.Capacity{}, err
	}
	if contract == nil {
		return domain.Capacity{}, domain.ErrContractNotFound
	}
	addenda, err := s.repo.ListAddenda(ctx, s.db, contractID)
	if err != nil {
		return domain.Capacity{}, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, contractID)
	if err != nil {
		return domain.Capacity{}, err
	}
	return domain.ContractCapacity(*contract, addenda, lines), nil
}

func (s *Service) loadLine(ctx context.Context, id snowflake.ID) (*domain.CommitmentLine, error) {
	line, err := s.repo.FindLine(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, domain.ErrLineNotFound
	}
	return line, nil
}

// mutateLine re-reads the line, applies fn and writes it back guarded by the
// row version, retrying when a concurrent writer wins.
func (s *Service) mutateLine(ctx context.Context, id snowflake.ID, fn func(*domain.CommitmentLine) error) (domain.CommitmentLine, error) {
	attempts := s.policy.Get().CASMaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		line, err := s.loadLine(ctx, id)
		if err != nil {
			return domain.CommitmentLine{}, err
		}
		if err := fn(line); err != nil {
			return domain.CommitmentLine{}, err
		}
		ok, err := s.repo.UpdateLineBalance(ctx, s.db, line)
		if err != nil {
			return domain.CommitmentLine{}, err
		}
		if ok {
			return *line, nil
		}
		s.logger(ctx).Debug("commitment line version conflict",
			zap.String("line_id", id.String()),
			zap.Int("attempt", attempt),
		)
		if err := sleepBackoff(ctx, attempt); err != nil {
			return domain.CommitmentLine{}, err
		}
	}

	s.logger(ctx).Warn("commitment line update abandoned after retries", zap.String("line_id", id.String()))
	return domain.CommitmentLine{}, domain.ErrConcurrentUpdate
}

func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * 5 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// logger carries the request id and acting party of ctx.
func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
