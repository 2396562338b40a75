package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := withLines(db.WithContext(ctx)).
		Where("id = ?", id).
		Limit(1).
		Find(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var invoices []domain.Invoice
	err := withLines(db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("due_at asc, number asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Invoice, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.SupplierID != 0 {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.OnlyActive {
		stmt = stmt.Where("active = ?", true)
	}

	var invoices []domain.Invoice
	err := stmt.Order("number asc").Find(&invoices).Error
	return invoices, err
}

func (r *repo) ListOpenForSupplier(ctx context.Context, db *gorm.DB, supplierID snowflake.ID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := withLines(db.WithContext(ctx)).
		Where("type = ? AND supplier_id = ? AND active = ? AND status <> ?",
			domain.TypeSupplier, supplierID, true, domain.StatusPaid).
		Order("due_at asc, number asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]any{
			"gross_total":      invoice.GrossTotal,
			"discount_total":   invoice.DiscountTotal,
			"net_total":        invoice.NetTotal,
			"tax_total":        invoice.TaxTotal,
			"fee_total":        invoice.FeeTotal,
			"fee_rate_pct":     invoice.FeeRatePct,
			"amount_due":       invoice.AmountDue,
			"amount_advanced":  invoice.AmountAdvanced,
			"amount_paid":      invoice.AmountPaid,
			"amount_remaining": invoice.AmountRemaining,
			"status":           invoice.Status,
			"active":           invoice.Active,
			"paid_at":          invoice.PaidAt,
			"deactivated_at":   invoice.DeactivatedAt,
			"metadata":         invoice.Metadata,
			"version":          invoice.Version + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	invoice.Version++
	invoice.UpdatedAt = now
	return true, nil
}

func (r *repo) UpdateLine(ctx context.Context, db *gorm.DB, line *domain.Line) error {
	return db.WithContext(ctx).Model(&domain.Line{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{
			"paid":       line.Paid,
			"paid_at":    line.PaidAt,
			"removed_at": line.RemovedAt,
		}).Error
}

func withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("TaxLines", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_id asc, category asc") })
}
