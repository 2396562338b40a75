package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/advance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, advance *domain.AdvanceRequest) error {
	return db.WithContext(ctx).Create(advance).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AdvanceRequest, error) {
	var advance domain.AdvanceRequest
	err := withAllocations(db.WithContext(ctx)).
		Where("id = ?", id).
		Limit(1).
		Find(&advance).Error
	if err != nil {
		return nil, err
	}
	if advance.ID == 0 {
		return nil, nil
	}
	return &advance, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AdvanceRequest, error) {
	stmt := withAllocations(db.WithContext(ctx)).Model(&domain.AdvanceRequest{})
	if filter.SupplierID != 0 {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var advances []domain.AdvanceRequest
	err := stmt.Order("created_at desc, id desc").Find(&advances).Error
	return advances, err
}

type heldRow struct {
	InvoiceID snowflake.ID
	Amount    decimal.Decimal
}

func (r *repo) Held(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID]decimal.Decimal, error) {
	out := map[snowflake.ID]decimal.Decimal{}
	if len(invoiceIDs) == 0 {
		return out, nil
	}

	var rows []heldRow
	err := db.WithContext(ctx).
		Table("advance_allocations AS a").
		Select("a.invoice_id, a.amount").
		Joins("JOIN advance_requests AS r ON r.id = a.advance_id").
		Where("a.invoice_id IN ? AND r.status IN ?", invoiceIDs, domain.HoldingStatuses).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	// Summed here so decimal columns keep their precision on every dialect.
	for _, row := range rows {
		out[row.InvoiceID] = out[row.InvoiceID].Add(row.Amount)
	}
	return out, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, advance *domain.AdvanceRequest, from domain.Status) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.AdvanceRequest{}).
		Where("id = ? AND version = ? AND status = ?", advance.ID, advance.Version, from).
		Updates(map[string]any{
			"status":        advance.Status,
			"reject_reason": advance.RejectReason,
			"decided_at":    advance.DecidedAt,
			"paid_at":       advance.PaidAt,
			"cancelled_at":  advance.CancelledAt,
			"version":       advance.Version + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	advance.Version++
	advance.UpdatedAt = now
	return true, nil
}

func withAllocations(db *gorm.DB) *gorm.DB {
	return db.Preload("Allocations", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") })
}
