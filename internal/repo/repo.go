// Package repo holds the persistence layer behind explicit interfaces.
// Engines receive these interfaces; nothing reaches for a store handle
// through package state.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/models"
)

type Users interface {
	Create(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id uint) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	UpdateRating(ctx context.Context, userID uint, avg float64, count int) error
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

type ProductFilter struct {
	Categories []string
	MinPrice   float64
	MaxPrice   float64
	FarmerID   uint
	Search     string
	ActiveOnly bool
	Status     string
	SortBy     string
	SortOrder  string
	Offset     int
	Limit      int
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type PriceStats struct {
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
}

type Products interface {
	Create(ctx context.Context, p *models.Product) error
	ByID(ctx context.Context, id uint) (*models.Product, error)
	Save(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
	CategoryCounts(ctx context.Context, f ProductFilter) ([]CategoryCount, error)
	PriceRange(ctx context.Context, f ProductFilter) (PriceStats, error)
	IncrementViews(ctx context.Context, id uint) error
	UpdateRating(ctx context.Context, id uint, avg float64, count int) error
	Count(ctx context.Context) (int64, error)
}

type OrderFilter struct {
	Status        string
	PaymentStatus string
	BuyerID       uint
	FarmerID      uint
	StartDate     *time.Time
	EndDate       *time.Time
	Offset        int
	Limit         int
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type Orders interface {
	// Create inserts the order and decrements stock for every line in one
	// transaction. A line whose conditional decrement matches no row fails
	// the whole order with domain.ErrInsufficientStock.
	Create(ctx context.Context, o *models.Order) error
	ByID(ctx context.Context, id uint) (*models.Order, error)
	Save(ctx context.Context, o *models.Order) error
	// CancelAndRestock persists the cancelled order and restores each
	// item's quantity onto its product, skipping products that no longer
	// exist, in one transaction.
	CancelAndRestock(ctx context.Context, o *models.Order) error
	ListByBuyer(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	ListByFarmer(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	ListAdmin(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	AllByFarmer(ctx context.Context, farmerID uint) ([]models.Order, error)
	Count(ctx context.Context) (int64, error)
	PaidRevenue(ctx context.Context) (float64, error)
	StatusBreakdown(ctx context.Context) ([]StatusCount, error)
	PaymentBreakdown(ctx context.Context) ([]StatusCount, error)
	Recent(ctx context.Context, limit int) ([]models.Order, error)
}

type ReviewFilter struct {
	ProductID uint
	UserID    uint
	Rating    int
	Active    *bool
	Reported  bool
	SortBy    string
	Offset    int
	Limit     int
}

type RatingCount struct {
	Rating int   `json:"rating"`
	Count  int64 `json:"count"`
}

type Reviews interface {
	Create(ctx context.Context, r *models.Review) error
	ByID(ctx context.Context, id uint) (*models.Review, error)
	Save(ctx context.Context, r *models.Review) error
	ByProductAndUser(ctx context.Context, productID, userID uint) (*models.Review, error)
	ListByProduct(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error)
	ListAdmin(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error)
	// ProductRatingStats aggregates over every review of the product,
	// active or not; the cached aggregate is always a full recompute.
	ProductRatingStats(ctx context.Context, productID uint) (float64, int64, error)
	FarmerRatingStats(ctx context.Context, farmerID uint) (float64, int64, error)
	Distribution(ctx context.Context, productID uint) ([]RatingCount, error)
	VerifiedCount(ctx context.Context, productID uint) (int64, error)
}

// Store bundles the GORM-backed repositories over one connection.
type Store struct {
	Users    Users
	Products Products
	Orders   Orders
	Reviews  Reviews
}

func New(db *gorm.DB) *Store {
	return &Store{
		Users:    &userRepo{DB: db},
		Products: &productRepo{DB: db},
		Orders:   &orderRepo{DB: db},
		Reviews:  &reviewRepo{DB: db},
	}
}

// IsDuplicate reports whether err is a unique-index violation, across the
// postgres and sqlite drivers.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
