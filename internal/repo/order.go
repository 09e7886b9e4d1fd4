package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
)

type orderRepo struct {
	DB *gorm.DB
}

// Create writes the order and its stock decrements in a single
// transaction. Each line is a conditional update: it only matches while
// stock covers the quantity, so concurrent checkouts of the last units
// cannot both succeed and stock can never go negative. One failed line
// rolls the whole order back.
func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range o.Items {
			item := &o.Items[i]
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				Updates(map[string]any{
					"stock":       gorm.Expr("stock - ?", item.Quantity),
					"sales_count": gorm.Expr("sales_count + ?", item.Quantity),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: insufficient stock for %s", domain.ErrInsufficientStock, item.Name)
			}
		}
		if err := tx.Create(o).Error; err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("%w: transaction id already exists", domain.ErrConflict)
			}
			return err
		}
		return nil
	})
}

func (r *orderRepo) ByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Preload("Buyer").
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Save(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(o).Error
}

// CancelAndRestock restores every item's quantity onto its product and
// persists the cancelled order atomically. A product that was deleted
// since the order was placed is skipped.
func (r *orderRepo) CancelAndRestock(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range o.Items {
			item := &o.Items[i]
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(o).Error
	})
}

func applyOrderFilter(q *gorm.DB, f OrderFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("orders.payment_status = ?", f.PaymentStatus)
	}
	if f.StartDate != nil {
		q = q.Where("orders.created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("orders.created_at <= ?", *f.EndDate)
	}
	return q
}

func (r *orderRepo) ListByBuyer(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := applyOrderFilter(
		r.DB.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", f.BuyerID), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) farmerScope(ctx context.Context, farmerID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("order_items.farmer_id = ?", farmerID).
		Distinct("orders.id")
}

func (r *orderRepo) ListByFarmer(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	scope := applyOrderFilter(r.farmerScope(ctx, f.FarmerID), f)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ids []uint
	if err := scope.Order("orders.id DESC").
		Offset(f.Offset).Limit(f.Limit).
		Pluck("orders.id", &ids).Error; err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, total, nil
	}

	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Preload("Buyer").
		Where("id IN ?", ids).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) ListAdmin(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.BuyerID != 0 {
		q = q.Where("buyer_id = ?", f.BuyerID)
	}
	if f.FarmerID != 0 {
		q = q.Where("orders.id IN (?)",
			r.DB.Model(&models.OrderItem{}).Select("order_id").Where("farmer_id = ?", f.FarmerID))
	}
	q = applyOrderFilter(q, f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Preload("Items").
		Preload("Buyer").
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepo) AllByFarmer(ctx context.Context, farmerID uint) ([]models.Order, error) {
	var ids []uint
	if err := r.farmerScope(ctx, farmerID).Pluck("orders.id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("id IN ?", ids).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Count(&n).Error
	return n, err
}

func (r *orderRepo) PaidRevenue(ctx context.Context) (float64, error) {
	var revenue float64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Select("COALESCE(SUM(total_price),0)").
		Scan(&revenue).Error
	return revenue, err
}

func (r *orderRepo) StatusBreakdown(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

func (r *orderRepo) PaymentBreakdown(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("payment_status AS status, COUNT(*) AS count").
		Group("payment_status").
		Scan(&counts).Error
	return counts, err
}

func (r *orderRepo) Recent(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Buyer").
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
