// Package review manages product reviews and the derived rating
// aggregates. Aggregates are a cache, recomputed in full on every
// mutation; they are never incrementally trusted.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

// ReportThreshold is the report count at which a review is deactivated.
const ReportThreshold = 5

type Service struct {
	Reviews  repo.Reviews
	Products repo.Products
	Orders   repo.Orders
	Users    repo.Users
}

type AddInput struct {
	ProductID uint     `json:"product_id"`
	OrderID   *uint    `json:"order_id,omitempty"`
	Rating    int      `json:"rating"`
	Comment   string   `json:"comment"`
	Images    []string `json:"images"`
}

type UpdateInput struct {
	Rating  *int      `json:"rating,omitempty"`
	Comment *string   `json:"comment,omitempty"`
	Images  *[]string `json:"images,omitempty"`
}

// Add creates the single review a user may leave on a product. Supplying
// an order id is the only way to earn the verified-purchase flag: the
// order must belong to the caller, be delivered, and contain the product.
func (s *Service) Add(ctx context.Context, p policy.Principal, in AddInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}

	if _, err := s.Products.ByID(ctx, in.ProductID); err != nil {
		return nil, err
	}

	verified := false
	if in.OrderID != nil {
		order, err := s.Orders.ByID(ctx, *in.OrderID)
		if err != nil || order.BuyerID != p.ID || order.Status != models.OrderStatusDelivered {
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: you can only review products from delivered orders", domain.ErrValidation)
		}
		found := false
		for i := range order.Items {
			if order.Items[i].ProductID == in.ProductID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: this order does not contain the specified product", domain.ErrValidation)
		}
		verified = true
	}

	if _, err := s.Reviews.ByProductAndUser(ctx, in.ProductID, p.ID); err == nil {
		return nil, fmt.Errorf("%w: you have already reviewed this product", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	rv := &models.Review{
		ProductID:          in.ProductID,
		UserID:             p.ID,
		OrderID:            in.OrderID,
		Rating:             in.Rating,
		Comment:            strings.TrimSpace(in.Comment),
		Images:             in.Images,
		IsVerifiedPurchase: verified,
		IsActive:           true,
	}

	if err := s.Reviews.Create(ctx, rv); err != nil {
		return nil, err
	}

	if err := s.recompute(ctx, in.ProductID); err != nil {
		return nil, err
	}
	return rv, nil
}

// Update lets the owning user change rating, comment, or images.
func (s *Service) Update(ctx context.Context, p policy.Principal, id uint, in UpdateInput) (*models.Review, error) {
	rv, err := s.Reviews.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Allow(policy.ActionUpdateReview, p, policy.Resource{OwnerID: rv.UserID}); err != nil {
		return nil, err
	}

	if in.Rating != nil {
		if *in.Rating < 1 || *in.Rating > 5 {
			return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
		}
		rv.Rating = *in.Rating
	}
	if in.Comment != nil {
		rv.Comment = strings.TrimSpace(*in.Comment)
	}
	if in.Images != nil {
		rv.Images = *in.Images
	}

	if err := s.Reviews.Save(ctx, rv); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, rv.ProductID); err != nil {
		return nil, err
	}
	return rv, nil
}

// Delete soft-deletes via the active flag; owner or admin only.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id uint) error {
	rv, err := s.Reviews.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Allow(policy.ActionDeleteReview, p, policy.Resource{OwnerID: rv.UserID}); err != nil {
		return err
	}

	rv.IsActive = false
	if err := s.Reviews.Save(ctx, rv); err != nil {
		return err
	}
	return s.recompute(ctx, rv.ProductID)
}

// MarkHelpful increments the helpful counter. Repeat votes from the same
// caller are not deduplicated; the original behaves the same way.
func (s *Service) MarkHelpful(ctx context.Context, id uint) (int, error) {
	rv, err := s.Reviews.ByID(ctx, id)
	if err != nil {
		return 0, err
	}
	rv.HelpfulCount++
	if err := s.Reviews.Save(ctx, rv); err != nil {
		return 0, err
	}
	return rv.HelpfulCount, nil
}

// Report increments the report counter and deactivates the review once
// the threshold is reached. There is no appeal or reset path.
func (s *Service) Report(ctx context.Context, id uint) error {
	rv, err := s.Reviews.ByID(ctx, id)
	if err != nil {
		return err
	}
	rv.ReportCount++
	if rv.ReportCount >= ReportThreshold {
		rv.IsActive = false
	}
	return s.Reviews.Save(ctx, rv)
}

type ProductReviewStats struct {
	RatingDistribution []repo.RatingCount `json:"rating_distribution"`
	VerifiedCount      int64              `json:"verified_count"`
	VerifiedPercentage int                `json:"verified_percentage"`
}

func (s *Service) ListByProduct(ctx context.Context, f repo.ReviewFilter) ([]models.Review, int64, *ProductReviewStats, error) {
	reviews, total, err := s.Reviews.ListByProduct(ctx, f)
	if err != nil {
		return nil, 0, nil, err
	}

	dist, err := s.Reviews.Distribution(ctx, f.ProductID)
	if err != nil {
		return nil, 0, nil, err
	}
	verified, err := s.Reviews.VerifiedCount(ctx, f.ProductID)
	if err != nil {
		return nil, 0, nil, err
	}

	stats := &ProductReviewStats{
		RatingDistribution: dist,
		VerifiedCount:      verified,
	}
	if total > 0 {
		stats.VerifiedPercentage = int(math.Round(float64(verified) / float64(total) * 100))
	}
	return reviews, total, stats, nil
}

func (s *Service) ListAdmin(ctx context.Context, p policy.Principal, f repo.ReviewFilter) ([]models.Review, int64, error) {
	if err := policy.Allow(policy.ActionViewAdminReviews, p, policy.Resource{}); err != nil {
		return nil, 0, err
	}
	return s.Reviews.ListAdmin(ctx, f)
}

// recompute is the one-directional aggregation pipeline: review mutated →
// product aggregate → farmer aggregate. Both are full recomputes.
func (s *Service) recompute(ctx context.Context, productID uint) error {
	avg, count, err := s.Reviews.ProductRatingStats(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.Products.UpdateRating(ctx, productID, util.Round1(avg), int(count)); err != nil {
		return err
	}

	product, err := s.Products.ByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	favg, fcount, err := s.Reviews.FarmerRatingStats(ctx, product.FarmerID)
	if err != nil {
		return err
	}
	return s.Users.UpdateRating(ctx, product.FarmerID, util.Round1(favg), int(fcount))
}
