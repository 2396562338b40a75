package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
	"github.com/smallbiznis/backoffice/internal/notification"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	"github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	"github.com/smallbiznis/backoffice/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Clock       clock.Clock
	Commitments commitmentdomain.Service
	Parties     partydomain.Service
	Codes       *sequence.Generator
	Notifier    notification.Publisher `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	clock       clock.Clock
	commitments commitmentdomain.Service
	parties     partydomain.Service
	codes       *sequence.Generator
	notifier    notification.Publisher
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.NopPublisher{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("serviceorder.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		commitments: p.Commitments,
		parties:     p.Parties,
		codes:       p.Codes,
		notifier:    notifier,
		obsMetrics:  p.ObsMetrics,
	}
}

// CreateOrder reserves the order's commitment consumption before assigning
// a code. When the order cannot be stored every reservation is released
// before the error is returned.
func (s *Service) CreateOrder(ctx context.Context, cmd domain.CreateOrderCommand) (domain.ServiceOrder, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.ServiceOrder{}, err
	}
	if _, err := s.parties.GetClient(ctx, cmd.ClientID); err != nil {
		return domain.ServiceOrder{}, err
	}
	supplier, err := s.parties.GetSupplier(ctx, cmd.SupplierID)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	now := s.clock.Now()
	order := domain.ServiceOrder{
		ID:               s.genID.Generate(),
		ClientID:         cmd.ClientID,
		SupplierID:       cmd.SupplierID,
		CostCenter:       strings.TrimSpace(cmd.CostCenter),
		VehiclePlate:     strings.ToUpper(strings.TrimSpace(cmd.VehiclePlate)),
		Description:      strings.TrimSpace(cmd.Description),
		GrossParts:       cmd.GrossParts,
		GrossLabor:       cmd.GrossLabor,
		PartsDiscountPct: cmd.PartsDiscountPct,
		LaborDiscountPct: cmd.LaborDiscountPct,
		Status:           domain.StatusAuthorized,
		Active:           true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.bindLines(ctx, &order, cmd.PartsLineID, cmd.LaborLineID); err != nil {
		return domain.ServiceOrder{}, err
	}
	order.ApplyValuation()

	reserved, err := s.reserveAll(ctx, order.Reservations())
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	_, err = s.codes.Generate(ctx, sequence.OrderCodes, sequence.OrderCodeTemplate, func(ctx context.Context, code string) error {
		order.Code = code
		return s.repo.Insert(ctx, s.db, &order)
	})
	if err != nil {
		s.compensate(ctx, "create_order", order.ID, reserved)
		return domain.ServiceOrder{}, err
	}

	s.logger(ctx).Info("service order created",
		zap.String("order_id", order.ID.String()),
		zap.String("code", order.Code),
		zap.String("final_value", order.FinalValue.String()),
	)
	s.notifier.Publish(ctx, notification.NewEvent(notification.EventOrderCreated, now, []string{supplier.Email}, map[string]any{
		"order_id": order.ID.String(),
		"code":     order.Code,
		"vehicle":  order.VehiclePlate,
		"total":    order.FinalValue.StringFixed(2),
	}))
	return order, nil
}

// UpdateOrder reserves any increase first, writes the order guarded by its
// version and only then releases what the old values held.
func (s *Service) UpdateOrder(ctx context.Context, cmd domain.UpdateOrderCommand) (domain.ServiceOrder, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.ServiceOrder{}, err
	}

	current, err := s.loadEditable(ctx, cmd.ID)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	before := current.Reservations()

	updated := *current
	updated.CostCenter = strings.TrimSpace(cmd.CostCenter)
	updated.VehiclePlate = strings.ToUpper(strings.TrimSpace(cmd.VehiclePlate))
	updated.Description = strings.TrimSpace(cmd.Description)
	updated.GrossParts = cmd.GrossParts
	updated.GrossLabor = cmd.GrossLabor
	updated.PartsDiscountPct = cmd.PartsDiscountPct
	updated.LaborDiscountPct = cmd.LaborDiscountPct
	if err := s.bindLines(ctx, &updated, cmd.PartsLineID, cmd.LaborLineID); err != nil {
		return domain.ServiceOrder{}, err
	}
	updated.ApplyValuation()

	increase, decrease := diffReservations(before, updated.Reservations())

	reserved, err := s.reserveAll(ctx, increase)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	ok, err := s.repo.Update(ctx, s.db, &updated)
	if err == nil && !ok {
		err = domain.ErrConcurrentUpdate
	}
	if err != nil {
		s.compensate(ctx, "update_order", updated.ID, reserved)
		return domain.ServiceOrder{}, err
	}

	if _, err := s.releaseAll(ctx, decrease); err != nil {
		s.logger(ctx).Error("releasing superseded reservation failed",
			zap.String("order_id", updated.ID.String()),
			zap.Error(err),
		)
	}

	s.logger(ctx).Info("service order updated",
		zap.String("order_id", updated.ID.String()),
		zap.String("final_value", updated.FinalValue.String()),
	)
	return updated, nil
}

// DeleteOrder deactivates the order and returns its consumption to the
// commitment lines. If a release fails the order is reactivated and the
// amounts already released are reserved again.
func (s *Service) DeleteOrder(ctx context.Context, cmd domain.DeleteOrderCommand) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	order, err := s.loadEditable(ctx, cmd.ID)
	if err != nil {
		return err
	}

	order.Active = false
	ok, err := s.repo.Update(ctx, s.db, order)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConcurrentUpdate
	}

	released, err := s.releaseAll(ctx, order.Reservations())
	if err != nil {
		s.restoreDeleted(ctx, order, released)
		return err
	}

	s.logger(ctx).Info("service order deleted",
		zap.String("order_id", order.ID.String()),
		zap.String("code", order.Code),
	)
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id snowflake.ID) (domain.ServiceOrder, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	if order == nil {
		return domain.ServiceOrder{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter domain.ListFilter) ([]domain.ServiceOrder, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) loadEditable(ctx context.Context, id snowflake.ID) (*domain.ServiceOrder, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Active {
		return nil, domain.ErrOrderInactive
	}
	if order.Claimed() {
		return nil, domain.ErrOrderClaimed
	}
	return order, nil
}

// bindLines points the order's parts and labor portions at commitment lines
// of the order's client.
func (s *Service) bindLines(ctx context.Context, order *domain.ServiceOrder, partsLine, laborLine *snowflake.ID) error {
	partsContract, err := s.resolveLine(ctx, order.ClientID, partsLine, commitmentdomain.LineTypeParts)
	if err != nil {
		return err
	}
	laborContract, err := s.resolveLine(ctx, order.ClientID, laborLine, commitmentdomain.LineTypeLabor)
	if err != nil {
		return err
	}
	order.PartsLineID, order.PartsContractID = copyID(partsLine), partsContract
	order.LaborLineID, order.LaborContractID = copyID(laborLine), laborContract
	return nil
}

func (s *Service) resolveLine(ctx context.Context, clientID snowflake.ID, lineID *snowflake.ID, portion commitmentdomain.LineType) (*snowflake.ID, error) {
	if lineID == nil {
		return nil, nil
	}
	line, err := s.commitments.GetLine(ctx, *lineID)
	if err != nil {
		return nil, err
	}
	if !line.Type.Accepts(portion) {
		return nil, domain.ErrLineTypeMismatch
	}
	contract, err := s.commitments.GetContract(ctx, line.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, domain.ErrContractClientMismatch
	}
	id := contract.ID
	return &id, nil
}

// reserveAll reserves every amount or none: on failure the reservations
// already made are released before returning.
func (s *Service) reserveAll(ctx context.Context, amounts map[snowflake.ID]decimal.Decimal) (map[snowflake.ID]decimal.Decimal, error) {
	done := map[snowflake.ID]decimal.Decimal{}
	for _, lineID := range slices.Sorted(maps.Keys(amounts)) {
		amount := amounts[lineID]
		if _, err := s.commitments.Reserve(ctx, commitmentdomain.ReserveRequest{LineID: lineID, Amount: amount}); err != nil {
			s.compensate(ctx, "reserve", 0, done)
			return nil, err
		}
		done[lineID] = amount
	}
	return done, nil
}

// releaseAll keeps going after a failure and reports what it did release.
// It ignores caller cancellation so a compensation is never left half done.
func (s *Service) releaseAll(ctx context.Context, amounts map[snowflake.ID]decimal.Decimal) (map[snowflake.ID]decimal.Decimal, error) {
	ctx = context.WithoutCancel(ctx)
	released := map[snowflake.ID]decimal.Decimal{}
	var errs []error
	for _, lineID := range slices.Sorted(maps.Keys(amounts)) {
		amount := amounts[lineID]
		if _, err := s.commitments.Release(ctx, commitmentdomain.ReleaseRequest{LineID: lineID, Amount: amount}); err != nil {
			errs = append(errs, err)
			continue
		}
		released[lineID] = amount
	}
	return released, errors.Join(errs...)
}

func (s *Service) compensate(ctx context.Context, operation string, orderID snowflake.ID, reserved map[snowflake.ID]decimal.Decimal) {
	if len(reserved) == 0 {
		return
	}
	s.obsMetrics.RecordCompensation(ctx, operation)
	if _, err := s.releaseAll(ctx, reserved); err != nil {
		s.logger(ctx).Error("compensating release failed",
			zap.String("operation", operation),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger(ctx).Warn("reservations released after failure",
		zap.String("operation", operation),
		zap.String("order_id", orderID.String()),
		zap.Int("lines", len(reserved)),
	)
}

func (s *Service) restoreDeleted(ctx context.Context, order *domain.ServiceOrder, released map[snowflake.ID]decimal.Decimal) {
	ctx = context.WithoutCancel(ctx)
	s.obsMetrics.RecordCompensation(ctx, "delete_order")

	for _, lineID := range slices.Sorted(maps.Keys(released)) {
		if _, err := s.commitments.Reserve(ctx, commitmentdomain.ReserveRequest{LineID: lineID, Amount: released[lineID]}); err != nil {
			s.logger(ctx).Error("re-reserving after failed delete",
				zap.String("order_id", order.ID.String()),
				zap.String("line_id", lineID.String()),
				zap.Error(err),
			)
		}
	}

	order.Active = true
	ok, err := s.repo.Update(ctx, s.db, order)
	if err != nil || !ok {
		s.logger(ctx).Error("reactivating order after failed delete",
			zap.String("order_id", order.ID.String()),
			zap.Bool("applied", ok),
			zap.Error(err),
		)
	}
}

func diffReservations(before, after map[snowflake.ID]decimal.Decimal) (increase, decrease map[snowflake.ID]decimal.Decimal) {
	increase = map[snowflake.ID]decimal.Decimal{}
	decrease = map[snowflake.ID]decimal.Decimal{}
	for lineID, amount := range after {
		delta := amount.Sub(before[lineID])
		if delta.IsPositive() {
			increase[lineID] = delta
		} else if delta.IsNegative() {
			decrease[lineID] = delta.Neg()
		}
	}
	for lineID, amount := range before {
		if _, ok := after[lineID]; !ok {
			decrease[lineID] = amount
		}
	}
	return increase, decrease
}

func copyID(id *snowflake.ID) *snowflake.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// logger carries the request id and acting party of ctx.
func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
