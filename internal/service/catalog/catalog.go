// Package catalog owns product records: farmer CRUD, admin moderation,
// and the public listing views.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
)

type Service struct {
	Products repo.Products
}

type CreateInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image"`
}

type UpdateInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Image       *string  `json:"image,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (*models.Product, error) {
	if err := policy.Allow(policy.ActionCreateProduct, p, policy.Resource{}); err != nil {
		return nil, fmt.Errorf("%w: only farmers can create products", domain.ErrForbidden)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be greater than 0", domain.ErrValidation)
	}
	if !models.ValidUnit(in.Unit) {
		return nil, fmt.Errorf("%w: invalid unit %q", domain.ErrValidation, in.Unit)
	}
	if !models.ValidCategory(in.Category) {
		return nil, fmt.Errorf("%w: invalid category %q", domain.ErrValidation, in.Category)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", domain.ErrValidation)
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Unit:        in.Unit,
		Category:    in.Category,
		Stock:       in.Stock,
		Image:       in.Image,
		FarmerID:    p.ID,
		IsActive:    true,
		AdminStatus: models.ProductStatusPending,
	}

	if err := s.Products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) Get(ctx context.Context, id uint, countView bool) (*models.Product, error) {
	product, err := s.Products.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if countView {
		if err := s.Products.IncrementViews(ctx, id); err != nil {
			return nil, err
		}
		product.Views++
	}
	return product, nil
}

func (s *Service) Update(ctx context.Context, p policy.Principal, id uint, in UpdateInput) (*models.Product, error) {
	product, err := s.Products.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Allow(policy.ActionUpdateProduct, p, policy.Resource{OwnerID: product.FarmerID}); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product name is required", domain.ErrValidation)
		}
		product.Name = name
	}
	if in.Description != nil {
		product.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be greater than 0", domain.ErrValidation)
		}
		product.Price = *in.Price
	}
	if in.Unit != nil {
		if !models.ValidUnit(*in.Unit) {
			return nil, fmt.Errorf("%w: invalid unit %q", domain.ErrValidation, *in.Unit)
		}
		product.Unit = *in.Unit
	}
	if in.Category != nil {
		if !models.ValidCategory(*in.Category) {
			return nil, fmt.Errorf("%w: invalid category %q", domain.ErrValidation, *in.Category)
		}
		product.Category = *in.Category
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, fmt.Errorf("%w: stock cannot be negative", domain.ErrValidation)
		}
		product.Stock = *in.Stock
	}
	if in.Image != nil {
		product.Image = *in.Image
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}

	if err := s.Products.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete hard-deletes the product and returns the removed record so the
// caller can clean up any locally stored image asset.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id uint) (*models.Product, error) {
	product, err := s.Products.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Allow(policy.ActionDeleteProduct, p, policy.Resource{OwnerID: product.FarmerID}); err != nil {
		return nil, err
	}
	if err := s.Products.Delete(ctx, id); err != nil {
		return nil, err
	}
	return product, nil
}

// Moderate sets the admin moderation status and stamps who did it.
func (s *Service) Moderate(ctx context.Context, p policy.Principal, id uint, status, reason string) (*models.Product, error) {
	if err := policy.Allow(policy.ActionModerateProduct, p, policy.Resource{}); err != nil {
		return nil, err
	}
	if !models.ValidProductStatus(status) {
		return nil, fmt.Errorf("%w: invalid product status %q", domain.ErrValidation, status)
	}

	product, err := s.Products.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	product.AdminStatus = status
	product.StatusReason = reason
	product.StatusUpdatedAt = &now
	product.StatusUpdatedByID = p.ID

	if err := s.Products.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

type ListResult struct {
	Products   []models.Product     `json:"products"`
	Total      int64                `json:"total"`
	Categories []repo.CategoryCount `json:"categories"`
	PriceRange repo.PriceStats      `json:"price_range"`
}

// List is the public storefront view: active products only, with
// category and price facets computed over the same filter.
func (s *Service) List(ctx context.Context, f repo.ProductFilter) (*ListResult, error) {
	f.ActiveOnly = true

	products, total, err := s.Products.List(ctx, f)
	if err != nil {
		return nil, err
	}
	categories, err := s.Products.CategoryCounts(ctx, f)
	if err != nil {
		return nil, err
	}
	prices, err := s.Products.PriceRange(ctx, f)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Products:   products,
		Total:      total,
		Categories: categories,
		PriceRange: prices,
	}, nil
}

func (s *Service) ListFarmer(ctx context.Context, farmerID uint, f repo.ProductFilter) ([]models.Product, int64, error) {
	f.FarmerID = farmerID
	f.ActiveOnly = false
	return s.Products.List(ctx, f)
}

// ListAdmin serves the moderation dashboard; the route group is
// admin-gated.
func (s *Service) ListAdmin(ctx context.Context, f repo.ProductFilter) ([]models.Product, int64, error) {
	f.ActiveOnly = false
	return s.Products.List(ctx, f)
}
