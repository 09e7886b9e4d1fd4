package review

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/config"
	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
)

type fixture struct {
	svc     *Service
	db      *gorm.DB
	farmer  models.User
	product models.Product
}

func newFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	store := repo.New(db)
	svc := &Service{
		Reviews:  store.Reviews,
		Products: store.Products,
		Orders:   store.Orders,
		Users:    store.Users,
	}

	farmer := models.User{FullName: "Abebe Kebede", Email: "abebe@example.com", PasswordHash: "x", Role: models.RoleFarmer}
	require.NoError(t, db.Create(&farmer).Error)

	product := models.Product{
		Name: "Tomatoes", Price: 100, Unit: "kg", Category: "vegetable",
		Stock: 10, FarmerID: farmer.ID, IsActive: true,
	}
	require.NoError(t, db.Create(&product).Error)

	return &fixture{svc: svc, db: db, farmer: farmer, product: product}
}

func buyer(id uint) policy.Principal {
	return policy.Principal{ID: id, Role: models.RoleBuyer}
}

func (f *fixture) deliveredOrder(t *testing.T, buyerID uint) models.Order {
	o := models.Order{
		BuyerID:       buyerID,
		TransactionID: "TXN-test-" + string(rune('a'+buyerID)),
		Status:        models.OrderStatusDelivered,
		Items: []models.OrderItem{
			{ProductID: f.product.ID, Name: f.product.Name, Price: f.product.Price, Quantity: 1, Subtotal: 115, FarmerID: f.farmer.ID},
		},
	}
	require.NoError(t, f.db.Create(&o).Error)
	return o
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 0})
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 6})
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Add(ctx, buyer(1), AddInput{ProductID: 999, Rating: 4})
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAddAndRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 4, Comment: "  fresh and tasty  "})
	require.NoError(t, err)
	require.Equal(t, "fresh and tasty", rv.Comment)
	require.False(t, rv.IsVerifiedPurchase)

	var p models.Product
	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	require.Equal(t, 4.0, p.AverageRating)
	require.Equal(t, 1, p.TotalReviews)

	_, err = f.svc.Add(ctx, buyer(2), AddInput{ProductID: f.product.ID, Rating: 5})
	require.NoError(t, err)

	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	require.Equal(t, 4.5, p.AverageRating)
	require.Equal(t, 2, p.TotalReviews)

	// the farmer aggregate follows the product aggregate
	var farmer models.User
	require.NoError(t, f.db.First(&farmer, f.farmer.ID).Error)
	require.Equal(t, 4.5, farmer.AverageRating)
	require.Equal(t, 2, farmer.TotalReviews)
}

func TestAddDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 4})
	require.NoError(t, err)

	_, err = f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 2})
	require.True(t, errors.Is(err, domain.ErrConflict))
}

func TestVerifiedPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t, 1)

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, OrderID: &order.ID, Rating: 5})
	require.NoError(t, err)
	require.True(t, rv.IsVerifiedPurchase)
}

func TestVerifiedPurchaseGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// order belongs to someone else
	order := f.deliveredOrder(t, 7)
	_, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, OrderID: &order.ID, Rating: 5})
	require.True(t, errors.Is(err, domain.ErrValidation))

	// order not delivered yet
	pending := models.Order{
		BuyerID: 1, TransactionID: "TXN-test-p", Status: models.OrderStatusPending,
		Items: []models.OrderItem{{ProductID: f.product.ID, Name: "Tomatoes", Price: 100, Quantity: 1, Subtotal: 115}},
	}
	require.NoError(t, f.db.Create(&pending).Error)
	_, err = f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, OrderID: &pending.ID, Rating: 5})
	require.True(t, errors.Is(err, domain.ErrValidation))

	// delivered order without the product
	other := models.Product{Name: "Onions", Price: 40, Unit: "kg", Category: "vegetable", Stock: 5, FarmerID: f.farmer.ID, IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)
	delivered := models.Order{
		BuyerID: 1, TransactionID: "TXN-test-q", Status: models.OrderStatusDelivered,
		Items: []models.OrderItem{{ProductID: other.ID, Name: "Onions", Price: 40, Quantity: 1, Subtotal: 46}},
	}
	require.NoError(t, f.db.Create(&delivered).Error)
	_, err = f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, OrderID: &delivered.ID, Rating: 5})
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestUpdateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 3})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, buyer(2), rv.ID, UpdateInput{})
	require.True(t, errors.Is(err, domain.ErrForbidden))

	newRating := 5
	updated, err := f.svc.Update(ctx, buyer(1), rv.ID, UpdateInput{Rating: &newRating})
	require.NoError(t, err)
	require.Equal(t, 5, updated.Rating)

	var p models.Product
	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	require.Equal(t, 5.0, p.AverageRating)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 3})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, buyer(2), rv.ID)
	require.True(t, errors.Is(err, domain.ErrForbidden))

	require.NoError(t, f.svc.Delete(ctx, policy.Principal{ID: 9, Role: models.RoleAdmin}, rv.ID))

	var stored models.Review
	require.NoError(t, f.db.First(&stored, rv.ID).Error)
	require.False(t, stored.IsActive)

	reviews, total, _, err := f.svc.ListByProduct(ctx, repo.ReviewFilter{ProductID: f.product.ID, Limit: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, reviews)
}

func TestMarkHelpful(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 4})
	require.NoError(t, err)

	n, err := f.svc.MarkHelpful(ctx, rv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.svc.MarkHelpful(ctx, rv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = f.svc.MarkHelpful(ctx, 999)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReportThresholdDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rv, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, Rating: 1, Comment: "spam"})
	require.NoError(t, err)

	for i := 0; i < ReportThreshold-1; i++ {
		require.NoError(t, f.svc.Report(ctx, rv.ID))
	}
	var stored models.Review
	require.NoError(t, f.db.First(&stored, rv.ID).Error)
	require.True(t, stored.IsActive)
	require.Equal(t, ReportThreshold-1, stored.ReportCount)

	require.NoError(t, f.svc.Report(ctx, rv.ID))
	require.NoError(t, f.db.First(&stored, rv.ID).Error)
	require.False(t, stored.IsActive)
}

func TestListByProductStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t, 1)

	_, err := f.svc.Add(ctx, buyer(1), AddInput{ProductID: f.product.ID, OrderID: &order.ID, Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, buyer(2), AddInput{ProductID: f.product.ID, Rating: 4})
	require.NoError(t, err)

	reviews, total, stats, err := f.svc.ListByProduct(ctx, repo.ReviewFilter{ProductID: f.product.ID, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, reviews, 2)
	require.EqualValues(t, 1, stats.VerifiedCount)
	require.Equal(t, 50, stats.VerifiedPercentage)
	require.Len(t, stats.RatingDistribution, 2)
}

func TestListAdminRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.ListAdmin(ctx, buyer(1), repo.ReviewFilter{Limit: 10})
	require.True(t, errors.Is(err, domain.ErrForbidden))

	_, _, err = f.svc.ListAdmin(ctx, policy.Principal{ID: 9, Role: models.RoleAdmin}, repo.ReviewFilter{Limit: 10})
	require.NoError(t, err)
}
