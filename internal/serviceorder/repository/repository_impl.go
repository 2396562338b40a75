package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.ServiceOrder) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&order).Error; err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.ServiceOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []domain.ServiceOrder
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("code asc").
		Find(&orders).Error
	return orders, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.ServiceOrder, error) {
	stmt := db.WithContext(ctx).Model(&domain.ServiceOrder{}).Where("active = ?", true)
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.SupplierID != 0 {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Unclaimed.Valid() {
		stmt = stmt.Where(filter.Unclaimed.Column() + " IS NULL")
	}

	var orders []domain.ServiceOrder
	err := stmt.Order("code asc").Find(&orders).Error
	return orders, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.ServiceOrder) (bool, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.ServiceOrder{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"cost_center":         order.CostCenter,
			"vehicle_plate":       order.VehiclePlate,
			"description":         order.Description,
			"parts_contract_id":   order.PartsContractID,
			"parts_line_id":       order.PartsLineID,
			"labor_contract_id":   order.LaborContractID,
			"labor_line_id":       order.LaborLineID,
			"gross_parts":         order.GrossParts,
			"gross_labor":         order.GrossLabor,
			"parts_discount_pct":  order.PartsDiscountPct,
			"labor_discount_pct":  order.LaborDiscountPct,
			"discounted_parts":    order.DiscountedParts,
			"discounted_labor":    order.DiscountedLabor,
			"final_value":         order.FinalValue,
			"status":              order.Status,
			"supplier_invoice_id": order.SupplierInvoiceID,
			"client_invoice_id":   order.ClientInvoiceID,
			"active":              order.Active,
			"version":             order.Version + 1,
			"updated_at":          now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	order.Version++
	order.UpdatedAt = now
	return true, nil
}
