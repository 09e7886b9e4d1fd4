package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
)

type reviewRepo struct {
	DB *gorm.DB
}

func (r *reviewRepo) Create(ctx context.Context, rv *models.Review) error {
	if err := r.DB.WithContext(ctx).Create(rv).Error; err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%w: you have already reviewed this product", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *reviewRepo) ByID(ctx context.Context, id uint) (*models.Review, error) {
	var rv models.Review
	if err := r.DB.WithContext(ctx).First(&rv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: review %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepo) Save(ctx context.Context, rv *models.Review) error {
	return r.DB.WithContext(ctx).Omit("User", "Product").Save(rv).Error
}

func (r *reviewRepo) ByProductAndUser(ctx context.Context, productID, userID uint) (*models.Review, error) {
	var rv models.Review
	err := r.DB.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		First(&rv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: review", domain.ErrNotFound)
		}
		return nil, err
	}
	return &rv, nil
}

func reviewOrderClause(sortBy string) string {
	switch sortBy {
	case "recent":
		return "created_at DESC"
	case "rating":
		return "rating DESC"
	default:
		return "helpful_count DESC"
	}
}

func (r *reviewRepo) ListByProduct(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ? AND is_active = ?", f.ProductID, true)
	if f.Rating != 0 {
		q = q.Where("rating = ?", f.Rating)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := q.Preload("User").
		Order(reviewOrderClause(f.SortBy)).
		Offset(f.Offset).Limit(f.Limit).
		Find(&reviews).Error
	return reviews, total, err
}

func (r *reviewRepo) ListAdmin(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Review{})
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Reported {
		q = q.Where("report_count > 0")
	}
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := q.Preload("User").
		Preload("Product").
		Order("report_count DESC, created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&reviews).Error
	return reviews, total, err
}

func (r *reviewRepo) ProductRatingStats(ctx context.Context, productID uint) (float64, int64, error) {
	var stats struct {
		Avg   float64
		Total int64
	}
	err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ?", productID).
		Select("COALESCE(AVG(rating),0) AS avg, COUNT(*) AS total").
		Scan(&stats).Error
	return stats.Avg, stats.Total, err
}

func (r *reviewRepo) FarmerRatingStats(ctx context.Context, farmerID uint) (float64, int64, error) {
	var stats struct {
		Avg   float64
		Total int64
	}
	err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Joins("JOIN products ON products.id = reviews.product_id").
		Where("products.farmer_id = ?", farmerID).
		Select("COALESCE(AVG(reviews.rating),0) AS avg, COUNT(*) AS total").
		Scan(&stats).Error
	return stats.Avg, stats.Total, err
}

func (r *reviewRepo) Distribution(ctx context.Context, productID uint) ([]RatingCount, error) {
	var counts []RatingCount
	err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ? AND is_active = ?", productID, true).
		Select("rating, COUNT(*) AS count").
		Group("rating").
		Order("rating DESC").
		Scan(&counts).Error
	return counts, err
}

func (r *reviewRepo) VerifiedCount(ctx context.Context, productID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ? AND is_active = ? AND is_verified_purchase = ?", productID, true, true).
		Count(&n).Error
	return n, err
}
