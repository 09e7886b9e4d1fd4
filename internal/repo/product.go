package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
)

type productRepo struct {
	DB *gorm.DB
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: you already have a product named %q", domain.ErrConflict, p.Name)
		}
		return err
	}
	return nil
}

func (r *productRepo) ByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).Preload("Farmer").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) Save(ctx context.Context, p *models.Product) error {
	err := r.DB.WithContext(ctx).Omit("Farmer").Save(p).Error
	if IsDuplicate(err) {
		return fmt.Errorf("%w: you already have a product named %q", domain.ErrConflict, p.Name)
	}
	return err
}

func (r *productRepo) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Product{}, id).Error
}

func (r *productRepo) applyFilter(q *gorm.DB, f ProductFilter) *gorm.DB {
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if len(f.Categories) == 1 {
		q = q.Where("category = ?", f.Categories[0])
	} else if len(f.Categories) > 1 {
		q = q.Where("category IN ?", f.Categories)
	}
	if f.MinPrice > 0 {
		q = q.Where("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		q = q.Where("price <= ?", f.MaxPrice)
	}
	if f.FarmerID != 0 {
		q = q.Where("farmer_id = ?", f.FarmerID)
	}
	if f.Status != "" {
		q = q.Where("admin_status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where(
			"LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?",
			like, like, like,
		)
	}
	return q
}

func orderClause(f ProductFilter) string {
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	switch f.SortBy {
	case "price":
		return "price " + dir
	case "name":
		return "name " + dir
	case "stock":
		return "stock " + dir
	case "rating":
		return "average_rating " + dir
	default:
		return "created_at " + dir
	}
}

func (r *productRepo) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	q := r.applyFilter(r.DB.WithContext(ctx).Model(&models.Product{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Farmer").Order(orderClause(f)).Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var items []models.Product
	err := q.Find(&items).Error
	return items, total, err
}

func (r *productRepo) CategoryCounts(ctx context.Context, f ProductFilter) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := r.applyFilter(r.DB.WithContext(ctx).Model(&models.Product{}), f).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (r *productRepo) PriceRange(ctx context.Context, f ProductFilter) (PriceStats, error) {
	var stats PriceStats
	err := r.applyFilter(r.DB.WithContext(ctx).Model(&models.Product{}), f).
		Select("COALESCE(MIN(price),0) AS min_price, COALESCE(MAX(price),0) AS max_price, COALESCE(AVG(price),0) AS avg_price").
		Scan(&stats).Error
	return stats, err
}

func (r *productRepo) IncrementViews(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *productRepo) UpdateRating(ctx context.Context, id uint, avg float64, count int) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]any{"average_rating": avg, "total_reviews": count}).Error
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}
