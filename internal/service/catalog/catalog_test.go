package catalog

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

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return &Service{Products: repo.New(db).Products}, db
}

func farmer(id uint) policy.Principal {
	return policy.Principal{ID: id, Role: models.RoleFarmer}
}

func TestCreateProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, farmer(1), CreateInput{
		Name: "  Tomatoes ", Description: "vine ripened",
		Price: 100, Unit: "kg", Category: "vegetable", Stock: 10,
	})
	require.NoError(t, err)
	require.Equal(t, "Tomatoes", p.Name)
	require.True(t, p.IsActive)
	require.Equal(t, models.ProductStatusPending, p.AdminStatus)
	require.EqualValues(t, 1, p.FarmerID)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Name: "", Price: 10, Unit: "kg", Category: "fruit"},
		{Name: "Mango", Price: 0, Unit: "kg", Category: "fruit"},
		{Name: "Mango", Price: 10, Unit: "crate", Category: "fruit"},
		{Name: "Mango", Price: 10, Unit: "kg", Category: "electronics"},
		{Name: "Mango", Price: 10, Unit: "kg", Category: "fruit", Stock: -1},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, farmer(1), in)
		require.True(t, errors.Is(err, domain.ErrValidation), "input %+v", in)
	}

	_, err := svc.Create(ctx, policy.Principal{ID: 2, Role: models.RoleBuyer}, CreateInput{
		Name: "Mango", Price: 10, Unit: "kg", Category: "fruit",
	})
	require.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCreateDuplicateNamePerFarmer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := CreateInput{Name: "Tomatoes", Price: 100, Unit: "kg", Category: "vegetable", Stock: 1}
	_, err := svc.Create(ctx, farmer(1), in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, farmer(1), in)
	require.True(t, errors.Is(err, domain.ErrConflict))

	// a different farmer may reuse the name
	_, err = svc.Create(ctx, farmer(2), in)
	require.NoError(t, err)
}

func TestUpdateOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, farmer(1), CreateInput{Name: "Teff", Price: 150, Unit: "kg", Category: "grain", Stock: 5})
	require.NoError(t, err)

	price := 175.0
	_, err = svc.Update(ctx, farmer(2), p.ID, UpdateInput{Price: &price})
	require.True(t, errors.Is(err, domain.ErrForbidden))

	updated, err := svc.Update(ctx, farmer(1), p.ID, UpdateInput{Price: &price})
	require.NoError(t, err)
	require.Equal(t, 175.0, updated.Price)

	bad := -1.0
	_, err = svc.Update(ctx, farmer(1), p.ID, UpdateInput{Price: &bad})
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestModerate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := policy.Principal{ID: 9, Role: models.RoleAdmin}

	p, err := svc.Create(ctx, farmer(1), CreateInput{Name: "Honey", Price: 300, Unit: "liter", Category: "other", Stock: 2})
	require.NoError(t, err)

	_, err = svc.Moderate(ctx, farmer(1), p.ID, models.ProductStatusApproved, "")
	require.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = svc.Moderate(ctx, admin, p.ID, "banned", "")
	require.True(t, errors.Is(err, domain.ErrValidation))

	moderated, err := svc.Moderate(ctx, admin, p.ID, models.ProductStatusRejected, "blurry photo")
	require.NoError(t, err)
	require.Equal(t, models.ProductStatusRejected, moderated.AdminStatus)
	require.Equal(t, "blurry photo", moderated.StatusReason)
	require.NotNil(t, moderated.StatusUpdatedAt)
	require.EqualValues(t, 9, moderated.StatusUpdatedByID)
}

func TestListFacetsAndViews(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seed := []CreateInput{
		{Name: "Tomatoes", Price: 100, Unit: "kg", Category: "vegetable", Stock: 10},
		{Name: "Onions", Price: 40, Unit: "kg", Category: "vegetable", Stock: 5},
		{Name: "Mango", Price: 60, Unit: "piece", Category: "fruit", Stock: 8},
	}
	var last *models.Product
	for _, in := range seed {
		p, err := svc.Create(ctx, farmer(1), in)
		require.NoError(t, err)
		last = p
	}
	// deactivated products never reach the storefront
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", last.ID).Update("is_active", false).Error)

	result, err := svc.List(ctx, repo.ProductFilter{Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, result.Total)
	require.Len(t, result.Categories, 1)
	require.Equal(t, "vegetable", result.Categories[0].Category)
	require.Equal(t, 40.0, result.PriceRange.MinPrice)
	require.Equal(t, 100.0, result.PriceRange.MaxPrice)

	got, err := svc.Get(ctx, result.Products[0].ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, got.Views)

	// farmer listing includes inactive products
	mine, total, err := svc.ListFarmer(ctx, 1, repo.ProductFilter{Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, mine, 3)
}

func TestDeleteReturnsRemovedProduct(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, farmer(1), CreateInput{Name: "Papaya", Price: 45, Unit: "piece", Category: "fruit", Stock: 4, Image: "/uploads/products/x.jpg"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, farmer(2), p.ID)
	require.True(t, errors.Is(err, domain.ErrForbidden))

	removed, err := svc.Delete(ctx, farmer(1), p.ID)
	require.NoError(t, err)
	require.Equal(t, "/uploads/products/x.jpg", removed.Image)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	require.Zero(t, count)
}
