package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	"github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/notification"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
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
	Orders     serviceorderdomain.Repository
	Parties    partydomain.Service
	Taxes      taxdomain.Service
	Fees       feedomain.Service
	Codes      *sequence.Generator
	Clock      clock.Clock
	Policy     *config.PolicyHolder   `optional:"true"`
	Notifier   notification.Publisher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	orders     serviceorderdomain.Repository
	parties    partydomain.Service
	taxes      taxdomain.Service
	fees       feedomain.Service
	codes      *sequence.Generator
	clock      clock.Clock
	policy     *config.PolicyHolder
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
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		orders:     p.Orders,
		parties:    p.Parties,
		taxes:      p.Taxes,
		fees:       p.Fees,
		codes:      p.Codes,
		clock:      p.Clock,
		policy:     p.Policy,
		notifier:   notifier,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateInvoice prices the requested orders and claims them for the
// invoice's direction. Orders are checked up front and claimed again with a
// version check inside the insert transaction, so a concurrent invoice over
// the same orders fails with ErrOrdersUnavailable instead of double billing.
func (s *Service) CreateInvoice(ctx context.Context, cmd domain.CreateInvoiceCommand) (domain.Invoice, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.Invoice{}, err
	}
	if cmd.PeriodEnd.Before(cmd.PeriodStart) {
		return domain.Invoice{}, domain.ErrInvalidPeriod
	}

	taxCfg, err := s.taxes.Active(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	feeCfg, err := s.fees.Active(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}

	recipient, err := s.counterpartEmail(ctx, cmd.Type, cmd.CounterpartID)
	if err != nil {
		return domain.Invoice{}, err
	}

	orders, err := s.resolveOrders(ctx, cmd)
	if err != nil {
		return domain.Invoice{}, err
	}
	clients, suppliers, err := s.loadParties(ctx, orders)
	if err != nil {
		return domain.Invoice{}, err
	}
	feeClient := clients[orders[0].ClientID]

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		Type:          cmd.Type,
		FeeClientID:   feeClient.ID,
		PeriodStart:   cmd.PeriodStart.UTC(),
		PeriodEnd:     cmd.PeriodEnd.UTC(),
		PaymentTiming: cmd.PaymentTiming,
		TaxConfigID:   taxCfg.ID,
		FeeConfigID:   feeCfg.ID,
		FeeBase:       feeCfg.OperationalFeeBase,
		Active:        true,
		Version:       1,
		Metadata:      datatypes.JSONMap{"tax_config_version": taxCfg.Version, "fee_config_version": feeCfg.Version},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	counterpart := cmd.CounterpartID
	if cmd.Type == domain.TypeSupplier {
		invoice.SupplierID = &counterpart
	} else {
		invoice.ClientID = &counterpart
	}
	terms := feeClient.PaymentTerm(s.policy.Get().DefaultPaymentTermDays)
	invoice.DueAt = invoice.PeriodEnd.AddDate(0, 0, terms)

	for i := range orders {
		order := &orders[i]
		order.ApplyValuation()
		withholding, err := taxdomain.OrderWithholding(suppliers[order.SupplierID], clients[order.ClientID], taxdomain.Base{
			Parts: order.DiscountedParts,
			Labor: order.DiscountedLabor,
		}, taxCfg)
		if err != nil {
			return domain.Invoice{}, err
		}
		invoice.Lines = append(invoice.Lines, s.newLine(invoice.ID, i+1, order, withholding.Total, now))
		for _, amount := range withholding.Categories {
			invoice.TaxLines = append(invoice.TaxLines, domain.TaxLine{
				ID:        s.genID.Generate(),
				InvoiceID: invoice.ID,
				OrderID:   order.ID,
				Category:  amount.Category,
				Parts:     amount.Parts,
				Labor:     amount.Labor,
				Combined:  amount.Combined,
				Amount:    amount.Total(),
				CreatedAt: now,
			})
		}
	}

	// Upfront supplier invoices are settled on issue.
	settle := cmd.Type == domain.TypeSupplier && cmd.PaymentTiming == partydomain.TimingUpfront
	if settle {
		for i := range invoice.Lines {
			paidAt := now
			invoice.Lines[i].Paid = true
			invoice.Lines[i].PaidAt = &paidAt
		}
	}
	if err := invoice.RecalculateTotals(feeClient, now); err != nil {
		return domain.Invoice{}, err
	}

	_, err = s.codes.Generate(ctx, sequence.InvoiceNumbers, sequence.InvoiceNumberTemplate, func(ctx context.Context, number string) error {
		invoice.Number = number
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
				return err
			}
			return s.claimOrders(ctx, tx, cmd.Type.Claim(), invoice.ID, orders, settle)
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.obsMetrics.RecordInvoice(ctx, string(invoice.Type))
	s.logger(ctx).Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("type", string(invoice.Type)),
		zap.Int("orders", len(invoice.Lines)),
		zap.String("amount_due", invoice.AmountDue.String()),
		zap.String("status", string(invoice.Status)),
	)
	s.notifier.Publish(ctx, notification.NewEvent(notification.EventInvoiceCreated, now, []string{recipient}, map[string]any{
		"invoice_id":   invoice.ID.String(),
		"number":       invoice.Number,
		"type":         string(invoice.Type),
		"period_start": invoice.PeriodStart.Format(time.DateOnly),
		"period_end":   invoice.PeriodEnd.Format(time.DateOnly),
		"amount_due":   invoice.AmountDue.StringFixed(2),
		"due_at":       invoice.DueAt.Format(time.DateOnly),
	}))
	return invoice, nil
}

// RemoveOrderFromInvoice drops one unpaid order and reprices the invoice
// with the fee settings it was issued with. The order's commitment
// reservation is left untouched. Removing the last order deactivates the
// invoice.
func (s *Service) RemoveOrderFromInvoice(ctx context.Context, cmd domain.RemoveOrderCommand) (domain.Invoice, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.Invoice{}, err
	}

	invoice, err := s.loadActive(ctx, cmd.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	line := invoice.LineFor(cmd.OrderID)
	if line == nil {
		return domain.Invoice{}, domain.ErrOrderNotOnInvoice
	}
	if line.Paid {
		return domain.Invoice{}, domain.ErrLinePaid
	}
	if invoice.AmountAdvanced.IsPositive() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s has advanced amounts", domain.ErrInvalidStateTransition, invoice.Number)
	}
	feeClient, err := s.parties.GetClient(ctx, invoice.FeeClientID)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	line.RemovedAt = &now
	if err := invoice.RecalculateTotals(feeClient, now); err != nil {
		return domain.Invoice{}, err
	}
	emptied := len(invoice.ActiveLines()) == 0
	if emptied {
		deactivate(invoice, now, "last order removed")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
			return err
		}
		if err := s.unclaimOrder(ctx, tx, invoice, cmd.OrderID); err != nil {
			return err
		}
		return s.update(ctx, tx, invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logger(ctx).Info("order removed from invoice",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("order_id", cmd.OrderID.String()),
		zap.Bool("deactivated", emptied),
		zap.String("amount_due", invoice.AmountDue.String()),
	)
	return *invoice, nil
}

// DeactivateInvoice withdraws an invoice nothing has been paid on and frees
// its orders for billing again.
func (s *Service) DeactivateInvoice(ctx context.Context, cmd domain.DeactivateInvoiceCommand) (domain.Invoice, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.Invoice{}, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, cmd.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	if err := invoice.CanDeactivate(); err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "deactivated"
	}
	lines := invoice.ActiveLines()
	deactivate(invoice, now, reason)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			if err := s.unclaimOrder(ctx, tx, invoice, line.OrderID); err != nil {
				return err
			}
		}
		return s.update(ctx, tx, invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logger(ctx).Info("invoice deactivated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("reason", reason),
		zap.Int("orders_released", len(lines)),
	)
	return *invoice, nil
}

// MarkOrderPaid records payment of one order and derives the invoice's
// amount paid with the amount-due to net ratio. Marking a paid line again is
// a no-op.
func (s *Service) MarkOrderPaid(ctx context.Context, cmd domain.MarkOrderPaidCommand) (domain.Invoice, error) {
	if err := validation.Struct(cmd); err != nil {
		return domain.Invoice{}, err
	}

	invoice, err := s.loadActive(ctx, cmd.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	line := invoice.LineFor(cmd.OrderID)
	if line == nil {
		return domain.Invoice{}, domain.ErrOrderNotOnInvoice
	}
	if line.Paid {
		return *invoice, nil
	}

	now := s.clock.Now()
	paidAt := now
	if cmd.PaidAt != nil {
		paidAt = cmd.PaidAt.UTC()
	}
	line.Paid = true
	line.PaidAt = &paidAt
	invoice.RecalculatePayments(now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
			return err
		}
		order, err := s.orders.FindByID(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return serviceorderdomain.ErrOrderNotFound
		}
		if err := order.MarkPaid(); err != nil {
			return err
		}
		ok, err := s.orders.Update(ctx, tx, order)
		if err != nil {
			return err
		}
		if !ok {
			return serviceorderdomain.ErrConcurrentUpdate
		}
		return s.update(ctx, tx, invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logger(ctx).Info("invoice order paid",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("order_id", cmd.OrderID.String()),
		zap.String("amount_paid", invoice.AmountPaid.String()),
		zap.String("status", string(invoice.Status)),
	)
	return *invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, filter domain.ListFilter) ([]domain.Invoice, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) counterpartEmail(ctx context.Context, t domain.Type, id snowflake.ID) (string, error) {
	if t == domain.TypeSupplier {
		supplier, err := s.parties.GetSupplier(ctx, id)
		return supplier.Email, err
	}
	client, err := s.parties.GetClient(ctx, id)
	return client.Email, err
}

// resolveOrders returns the requested orders in request order. Every one
// must exist, be billable in the invoice's direction and belong to the
// counterpart; a duplicated id counts as unavailable.
func (s *Service) resolveOrders(ctx context.Context, cmd domain.CreateInvoiceCommand) ([]serviceorderdomain.ServiceOrder, error) {
	found, err := s.orders.FindByIDs(ctx, s.db, cmd.OrderIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(cmd.OrderIDs) {
		return nil, fmt.Errorf("%w: resolved %d of %d orders", domain.ErrOrdersUnavailable, len(found), len(cmd.OrderIDs))
	}

	byID := make(map[snowflake.ID]serviceorderdomain.ServiceOrder, len(found))
	for _, order := range found {
		byID[order.ID] = order
	}

	claim := cmd.Type.Claim()
	out := make([]serviceorderdomain.ServiceOrder, 0, len(cmd.OrderIDs))
	for _, id := range cmd.OrderIDs {
		order := byID[id]
		owner := order.ClientID
		if cmd.Type == domain.TypeSupplier {
			owner = order.SupplierID
		}
		if !order.EligibleFor(claim) || owner != cmd.CounterpartID {
			return nil, fmt.Errorf("%w: order %s", domain.ErrOrdersUnavailable, order.Code)
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *Service) loadParties(ctx context.Context, orders []serviceorderdomain.ServiceOrder) (map[snowflake.ID]partydomain.Client, map[snowflake.ID]partydomain.Supplier, error) {
	clients := map[snowflake.ID]partydomain.Client{}
	suppliers := map[snowflake.ID]partydomain.Supplier{}
	for _, order := range orders {
		if _, ok := clients[order.ClientID]; !ok {
			client, err := s.parties.GetClient(ctx, order.ClientID)
			if err != nil {
				return nil, nil, err
			}
			clients[order.ClientID] = client
		}
		if _, ok := suppliers[order.SupplierID]; !ok {
			supplier, err := s.parties.GetSupplier(ctx, order.SupplierID)
			if err != nil {
				return nil, nil, err
			}
			suppliers[order.SupplierID] = supplier
		}
	}
	return clients, suppliers, nil
}

func (s *Service) newLine(invoiceID snowflake.ID, position int, order *serviceorderdomain.ServiceOrder, tax decimal.Decimal, now time.Time) domain.Line {
	gross := order.GrossTotal()
	return domain.Line{
		ID:            s.genID.Generate(),
		InvoiceID:     invoiceID,
		OrderID:       order.ID,
		Position:      position,
		OrderCode:     order.Code,
		GrossValue:    gross,
		DiscountValue: gross.Sub(order.FinalValue),
		NetValue:      order.FinalValue,
		TaxAmount:     tax,
		CreatedAt:     now,
	}
}

// claimOrders re-reads every priced order inside tx and claims it. An order
// edited or taken since it was priced aborts the transaction, so the lines
// always match the orders they claim.
func (s *Service) claimOrders(ctx context.Context, tx *gorm.DB, claim serviceorderdomain.Claim, invoiceID snowflake.ID, priced []serviceorderdomain.ServiceOrder, settle bool) error {
	for _, p := range priced {
		order, err := s.orders.FindByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: order %s vanished", domain.ErrOrdersUnavailable, p.ID)
		}
		if order.Version != p.Version {
			return fmt.Errorf("%w: order %s changed after pricing", domain.ErrOrdersUnavailable, order.Code)
		}
		if err := order.ClaimFor(claim, invoiceID, settle); err != nil {
			return fmt.Errorf("%w: order %s", domain.ErrOrdersUnavailable, order.Code)
		}
		ok, err := s.orders.Update(ctx, tx, order)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s changed concurrently", domain.ErrOrdersUnavailable, order.Code)
		}
	}
	return nil
}

func (s *Service) unclaimOrder(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, orderID snowflake.ID) error {
	order, err := s.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return serviceorderdomain.ErrOrderNotFound
	}
	if err := order.Unclaim(invoice.Type.Claim(), invoice.ID); err != nil {
		return err
	}
	ok, err := s.orders.Update(ctx, tx, order)
	if err != nil {
		return err
	}
	if !ok {
		return serviceorderdomain.ErrConcurrentUpdate
	}
	return nil
}

func (s *Service) loadActive(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	if !invoice.Active {
		return nil, domain.ErrInvoiceInactive
	}
	return invoice, nil
}

func (s *Service) update(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	ok, err := s.repo.Update(ctx, tx, invoice)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func deactivate(invoice *domain.Invoice, now time.Time, reason string) {
	invoice.Active = false
	invoice.DeactivatedAt = &now
	if invoice.Metadata == nil {
		invoice.Metadata = datatypes.JSONMap{}
	}
	invoice.Metadata["deactivation_reason"] = reason
}

// logger carries the request id and acting party of ctx.
func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
