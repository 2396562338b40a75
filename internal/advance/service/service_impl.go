package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/advance/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/locking"
	"github.com/smallbiznis/backoffice/internal/notification"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Invoices   invoicedomain.Repository
	Parties    partydomain.Service
	Fees       feedomain.Service
	Locker     locking.Locker
	Clock      clock.Clock
	Notifier   notification.Publisher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	invoices   invoicedomain.Repository
	parties    partydomain.Service
	fees       feedomain.Service
	locker     locking.Locker
	clock      clock.Clock
	notifier   notification.Publisher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.NopPublisher{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("advance.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		invoices:   p.Invoices,
		parties:    p.Parties,
		fees:       p.Fees,
		locker:     p.Locker,
		clock:      p.Clock,
		notifier:   notifier,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CalculateAdvancePreview(ctx context.Context, cmd domain.PreviewCommand) (domain.Preview, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.Preview{}, err
	}
	return s.preview(ctx, cmd.SupplierID, cmd.RequestedAmount, cmd.DesiredDate)
}

// CreateAdvanceRequest prices and stores a pending request. Requests of one
// supplier are created one at a time so two of them never draw the same
// invoice amount.
func (s *Service) CreateAdvanceRequest(ctx context.Context, cmd domain.CreateAdvanceCommand) (domain.AdvanceRequest, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.AdvanceRequest{}, err
	}
	supplier, err := s.parties.GetSupplier(ctx, cmd.SupplierID)
	if err != nil {
		return domain.AdvanceRequest{}, err
	}

	release, err := s.locker.Acquire(ctx, "advance:supplier:"+cmd.SupplierID.String())
	if err != nil {
		return domain.AdvanceRequest{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger(ctx).Warn("releasing advance lock failed", zap.String("supplier_id", cmd.SupplierID.String()), zap.Error(err))
		}
	}()

	preview, err := s.preview(ctx, cmd.SupplierID, cmd.RequestedAmount, cmd.DesiredDate)
	if err != nil {
		return domain.AdvanceRequest{}, err
	}

	now := s.clock.Now()
	advance := domain.AdvanceRequest{
		ID:              s.genID.Generate(),
		SupplierID:      cmd.SupplierID,
		RequestedAmount: preview.RequestedAmount,
		FeePct:          preview.FeePct,
		DiscountAmount:  preview.DiscountAmount,
		NetReceivable:   preview.NetReceivable,
		DesiredDate:     preview.DesiredDate,
		ScheduledDate:   preview.ScheduledDate,
		DaysAhead:       preview.DaysAhead,
		FeeConfigID:     preview.FeeConfigID,
		Status:          domain.StatusPending,
		Version:         1,
		Note:            strings.TrimSpace(cmd.Note),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i, draw := range preview.Draws {
		advance.Allocations = append(advance.Allocations, domain.Allocation{
			ID:            s.genID.Generate(),
			AdvanceID:     advance.ID,
			InvoiceID:     draw.InvoiceID,
			InvoiceNumber: draw.Number,
			Position:      i + 1,
			Amount:        draw.Amount,
		})
	}
	if len(preview.Excluded) > 0 {
		excluded := make([]any, 0, len(preview.Excluded))
		for _, e := range preview.Excluded {
			excluded = append(excluded, map[string]any{
				"invoice_id": e.InvoiceID.String(),
				"number":     e.Number,
				"reason":     e.Reason,
			})
		}
		advance.Metadata = datatypes.JSONMap{"excluded_invoices": excluded}
	}

	if err := s.repo.Insert(ctx, s.db, &advance); err != nil {
		return domain.AdvanceRequest{}, err
	}

	s.obsMetrics.RecordAdvanceTransition(ctx, string(advance.Status))
	s.logger(ctx).Info("advance requested",
		zap.String("advance_id", advance.ID.String()),
		zap.String("supplier_id", advance.SupplierID.String()),
		zap.String("requested", advance.RequestedAmount.String()),
		zap.Int("days_ahead", advance.DaysAhead),
		zap.Float64("fee_pct", advance.FeePct),
		zap.Int("invoices", len(advance.Allocations)),
	)
	s.notify(ctx, notification.EventAdvanceRequested, supplier.Email, advance)
	return advance, nil
}

func (s *Service) ApproveAdvance(ctx context.Context, cmd domain.ApproveAdvanceCommand) (domain.AdvanceRequest, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.AdvanceRequest{}, err
	}
	return s.transition(ctx, cmd.ID, domain.StatusApproved, nil)
}

func (s *Service) RejectAdvance(ctx context.Context, cmd domain.RejectAdvanceCommand) (domain.AdvanceRequest, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.AdvanceRequest{}, err
	}
	return s.transition(ctx, cmd.ID, domain.StatusRejected, func(advance *domain.AdvanceRequest) error {
		advance.RejectReason = strings.TrimSpace(cmd.Reason)
		return nil
	})
}

func (s *Service) CancelAdvance(ctx context.Context, cmd domain.CancelAdvanceCommand) (domain.AdvanceRequest, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.AdvanceRequest{}, err
	}
	return s.transition(ctx, cmd.ID, domain.StatusCancelled, func(advance *domain.AdvanceRequest) error {
		if advance.SupplierID != cmd.SupplierID {
			return domain.ErrNotRequester
		}
		return nil
	})
}

// PayAdvance marks an approved request paid and credits every drawn amount
// to its invoice in the same transaction. If any invoice can no longer take
// its draw nothing is written.
func (s *Service) PayAdvance(ctx context.Context, cmd domain.PayAdvanceCommand) (domain.AdvanceRequest, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.AdvanceRequest{}, err
	}
	return s.transition(ctx, cmd.ID, domain.StatusPaid, nil)
}

func (s *Service) GetAdvance(ctx context.Context, id snowflake.ID) (domain.AdvanceRequest, error) {
	advance, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.AdvanceRequest{}, err
	}
	if advance == nil {
		return domain.AdvanceRequest{}, domain.ErrAdvanceNotFound
	}
	return *advance, nil
}

func (s *Service) ListAdvances(ctx context.Context, filter domain.ListFilter) ([]domain.AdvanceRequest, error) {
	return s.repo.List(ctx, s.db, filter)
}

// preview collects the supplier's open invoices, leaves out those priced for
// flat-fee clients and those fully held by other requests, then prices the
// allocation.
func (s *Service) preview(ctx context.Context, supplierID snowflake.ID, requested decimal.Decimal, desired time.Time) (domain.Preview, error) {
	cfg, err := s.fees.Active(ctx)
	if err != nil {
		return domain.Preview{}, err
	}
	open, err := s.invoices.ListOpenForSupplier(ctx, s.db, supplierID)
	if err != nil {
		return domain.Preview{}, err
	}

	ids := make([]snowflake.ID, 0, len(open))
	for _, inv := range open {
		ids = append(ids, inv.ID)
	}
	held, err := s.repo.Held(ctx, s.db, ids)
	if err != nil {
		return domain.Preview{}, err
	}

	clients := map[snowflake.ID]partydomain.Client{}
	var (
		candidates []domain.Candidate
		excluded   []domain.Excluded
	)
	for _, inv := range open {
		client, ok := clients[inv.FeeClientID]
		if !ok {
			client, err = s.parties.GetClient(ctx, inv.FeeClientID)
			if err != nil {
				return domain.Preview{}, err
			}
			clients[inv.FeeClientID] = client
		}
		if client.FeeMode == partydomain.FeeModeFlat {
			excluded = append(excluded, domain.Excluded{InvoiceID: inv.ID, Number: inv.Number, Reason: domain.ExcludedFlatFeeClient})
			continue
		}
		available := inv.AmountRemaining.Sub(held[inv.ID])
		if !available.IsPositive() {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			InvoiceID: inv.ID,
			Number:    inv.Number,
			DueAt:     inv.DueAt,
			Available: available,
		})
	}

	preview, err := domain.Price(cfg, candidates, requested, desired.UTC())
	if err != nil {
		return domain.Preview{}, err
	}
	preview.SupplierID = supplierID
	preview.Excluded = excluded
	return preview, nil
}

// transition applies one lifecycle step guarded by the request's status and
// version. check runs against the loaded request before the step.
func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.Status, check func(*domain.AdvanceRequest) error) (domain.AdvanceRequest, error) {
	advance, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.AdvanceRequest{}, err
	}
	if advance == nil {
		return domain.AdvanceRequest{}, domain.ErrAdvanceNotFound
	}
	if check != nil {
		if err := check(advance); err != nil {
			return domain.AdvanceRequest{}, err
		}
	}
	supplier, err := s.parties.GetSupplier(ctx, advance.SupplierID)
	if err != nil {
		return domain.AdvanceRequest{}, err
	}

	from := advance.Status
	now := s.clock.Now()
	if err := advance.Transition(to, now); err != nil {
		return domain.AdvanceRequest{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateStatus(ctx, tx, advance, from)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		if to == domain.StatusPaid {
			return s.applyToInvoices(ctx, tx, advance, now)
		}
		return nil
	})
	if err != nil {
		return domain.AdvanceRequest{}, err
	}

	s.obsMetrics.RecordAdvanceTransition(ctx, string(to))
	s.logger(ctx).Info("advance transitioned",
		zap.String("advance_id", advance.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.notify(ctx, eventFor(to), supplier.Email, *advance)
	return *advance, nil
}

func (s *Service) applyToInvoices(ctx context.Context, tx *gorm.DB, advance *domain.AdvanceRequest, now time.Time) error {
	for _, alloc := range advance.Allocations {
		inv, err := s.invoices.FindByID(ctx, tx, alloc.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if err := inv.ApplyAdvancePayment(alloc.Amount, now); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		ok, err := s.invoices.Update(ctx, tx, inv)
		if err != nil {
			return err
		}
		if !ok {
			return invoicedomain.ErrConcurrentUpdate
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, eventType notification.EventType, email string, advance domain.AdvanceRequest) {
	s.notifier.Publish(ctx, notification.NewEvent(eventType, s.clock.Now(), []string{email}, map[string]any{
		"advance_id": advance.ID.String(),
		"requested":  advance.RequestedAmount.StringFixed(2),
		"fee":        advance.DiscountAmount.StringFixed(2),
		"fee_pct":    advance.FeePct,
		"net":        advance.NetReceivable.StringFixed(2),
		"reason":     advance.RejectReason,
	}))
}

func eventFor(status domain.Status) notification.EventType {
	switch status {
	case domain.StatusApproved:
		return notification.EventAdvanceApproved
	case domain.StatusRejected:
		return notification.EventAdvanceRejected
	case domain.StatusPaid:
		return notification.EventAdvancePaid
	default:
		return notification.EventAdvanceCancelled
	}
}

// logger carries the request id and acting party of ctx.
func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
