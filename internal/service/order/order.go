// Package order turns validated carts into durable orders and governs
// their status and payment evolution.
package order

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

const (
	// TaxRate is applied on top of the item price, not extracted from it.
	TaxRate = 0.15
	// DeliveryFee is flat per order.
	DeliveryFee = 50.0

	estimatedDeliveryDays = 7
)

type Service struct {
	Orders   repo.Orders
	Products repo.Products
}

type CreateItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateInput struct {
	Items           []CreateItem           `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	Notes           string                 `json:"notes"`
}

// transitions is the forward-only status graph. Cancellation is reachable
// from every non-terminal state; delivered and cancelled are terminal.
var transitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

func canTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Create validates each line against the live catalog, snapshots product
// and farmer data into the order items, and persists order + stock
// decrement in one transaction.
func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (*models.Order, error) {
	if err := policy.Allow(policy.ActionCreateOrder, p, policy.Resource{}); err != nil {
		return nil, fmt.Errorf("%w: only buyers can place orders", domain.ErrForbidden)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", domain.ErrValidation)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash_on_delivery"
	}
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return nil, fmt.Errorf("%w: invalid payment method %q", domain.ErrValidation, in.PaymentMethod)
	}

	var (
		items      []models.OrderItem
		totalPrice float64
		taxAmount  float64
	)

	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
		}

		product, err := s.Products.ByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if line.Quantity > product.Stock {
			return nil, fmt.Errorf("%w: insufficient stock for %s, available: %d",
				domain.ErrInsufficientStock, product.Name, product.Stock)
		}

		itemTotal := product.Price * float64(line.Quantity)
		itemTax := itemTotal * TaxRate
		subtotal := util.Round2(itemTotal + itemTax)

		item := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Unit:      product.Unit,
			Image:     product.Image,
			Quantity:  line.Quantity,
			Tax:       util.Round2(itemTax),
			Subtotal:  subtotal,
		}
		if product.Farmer != nil {
			item.FarmerID = product.Farmer.ID
			item.FarmerName = product.Farmer.FullName
			item.FarmerCity = product.Farmer.City
		} else {
			item.FarmerID = product.FarmerID
		}

		items = append(items, item)
		totalPrice += subtotal
		taxAmount += itemTax
	}

	estimated := time.Now().Add(estimatedDeliveryDays * 24 * time.Hour)

	order := &models.Order{
		BuyerID:           p.ID,
		Items:             items,
		TotalPrice:        util.Round2(totalPrice + DeliveryFee),
		DeliveryFee:       DeliveryFee,
		TaxAmount:         util.Round2(taxAmount),
		ShippingAddress:   in.ShippingAddress,
		PaymentMethod:     in.PaymentMethod,
		PaymentStatus:     models.PaymentStatusPending,
		TransactionID:     newTransactionID(),
		Status:            models.OrderStatusPending,
		EstimatedDelivery: &estimated,
		Notes:             in.Notes,
	}

	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns a single order, visible to its buyer, any farmer with an
// item in it, and admins.
func (s *Service) Get(ctx context.Context, p policy.Principal, id uint) (*models.Order, error) {
	order, err := s.Orders.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Allow(policy.ActionViewOrder, p, orderResource(order)); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves the order along the status graph, applying the
// transition's side effects.
func (s *Service) UpdateStatus(ctx context.Context, p policy.Principal, id uint, status string) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}

	order, err := s.Orders.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(order.Status, status) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", domain.ErrValidation, order.Status, status)
	}

	action := policy.ActionAdvanceOrder
	if status == models.OrderStatusCancelled {
		if order.Status == models.OrderStatusPending {
			action = policy.ActionCancelPending
		} else {
			action = policy.ActionCancelInFlight
		}
	}
	if err := policy.Allow(action, p, orderResource(order)); err != nil {
		return nil, err
	}

	now := time.Now()
	order.Status = status

	switch status {
	case models.OrderStatusShipped:
		order.ShippedAt = &now
		order.TrackingNumber = newTrackingNumber()
	case models.OrderStatusDelivered:
		order.DeliveredAt = &now
	case models.OrderStatusCancelled:
		order.CancelledAt = &now
		if err := s.Orders.CancelAndRestock(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	}

	if err := s.Orders.Save(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdatePaymentStatus is admin-only and has no side effects on stock or
// order status.
func (s *Service) UpdatePaymentStatus(ctx context.Context, p policy.Principal, id uint, status string) (*models.Order, error) {
	if !models.ValidPaymentStatus(status) {
		return nil, fmt.Errorf("%w: invalid payment status %q", domain.ErrValidation, status)
	}
	if err := policy.Allow(policy.ActionSetPaymentStatus, p, policy.Resource{}); err != nil {
		return nil, err
	}

	order, err := s.Orders.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = status
	if err := s.Orders.Save(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) ListBuyer(ctx context.Context, p policy.Principal, f repo.OrderFilter) ([]models.Order, int64, error) {
	f.BuyerID = p.ID
	return s.Orders.ListByBuyer(ctx, f)
}

// FarmerOrder is an order narrowed to one farmer's items, with the
// farmer-scoped subtotal computed on read, never stored.
type FarmerOrder struct {
	models.Order
	FarmerItems []models.OrderItem `json:"farmer_items"`
	FarmerTotal float64            `json:"farmer_total"`
}

func (s *Service) ListFarmer(ctx context.Context, p policy.Principal, f repo.OrderFilter) ([]FarmerOrder, int64, error) {
	f.FarmerID = p.ID
	orders, total, err := s.Orders.ListByFarmer(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	out := make([]FarmerOrder, 0, len(orders))
	for _, o := range orders {
		var (
			items    []models.OrderItem
			subtotal float64
		)
		for _, item := range o.Items {
			if item.FarmerID == p.ID {
				items = append(items, item)
				subtotal += item.Price * float64(item.Quantity)
			}
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, FarmerOrder{
			Order:       o,
			FarmerItems: items,
			FarmerTotal: util.Round2(subtotal),
		})
	}
	return out, total, nil
}

func (s *Service) ListAdmin(ctx context.Context, p policy.Principal, f repo.OrderFilter) ([]models.Order, int64, error) {
	if err := policy.Allow(policy.ActionViewAdminOrders, p, policy.Resource{}); err != nil {
		return nil, 0, err
	}
	return s.Orders.ListAdmin(ctx, f)
}

func orderResource(o *models.Order) policy.Resource {
	farmers := make([]uint, 0, len(o.Items))
	for i := range o.Items {
		farmers = append(farmers, o.Items[i].FarmerID)
	}
	return policy.Resource{OwnerID: o.BuyerID, FarmerIDs: farmers}
}

const txnAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newTransactionID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = txnAlphabet[rand.Intn(len(txnAlphabet))]
	}
	return fmt.Sprintf("TXN-%d-%s", time.Now().UnixMilli(), suffix)
}

func newTrackingNumber() string {
	return "TRK-" + strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}
