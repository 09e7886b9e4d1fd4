// Package stats derives sales and inventory summaries on demand. Nothing
// is cached or incrementally maintained; monetary values accumulate at
// full precision and are rounded only at the output boundary.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/policy"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/util"
)

type Service struct {
	Orders   repo.Orders
	Products repo.Products
	Users    repo.Users
}

type MonthlySales struct {
	Month string  `json:"month"`
	Sales float64 `json:"sales"`
}

type TopProduct struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type FarmerStats struct {
	TotalOrders         int            `json:"total_orders"`
	TotalSales          float64        `json:"total_sales"`
	PendingOrders       int            `json:"pending_orders"`
	ProcessingOrders    int            `json:"processing_orders"`
	ShippedOrders       int            `json:"shipped_orders"`
	DeliveredOrders     int            `json:"delivered_orders"`
	CancelledOrders     int            `json:"cancelled_orders"`
	AverageOrderValue   float64        `json:"average_order_value"`
	OrderCompletionRate float64        `json:"order_completion_rate"`
	MonthlySales        []MonthlySales `json:"monthly_sales"`
	TopProducts         []TopProduct   `json:"top_products"`
}

// Farmer aggregates the farmer's share of every order touching one of
// their items: only their items count toward sales, and monthly buckets
// cover the last 6 calendar months.
func (s *Service) Farmer(ctx context.Context, farmerID uint) (*FarmerStats, error) {
	orders, err := s.Orders.AllByFarmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	stats := &FarmerStats{
		MonthlySales: []MonthlySales{},
		TopProducts:  []TopProduct{},
	}

	type productAgg struct {
		quantity int
		revenue  float64
	}
	monthly := map[time.Time]float64{}
	products := map[string]*productAgg{}
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)

	for _, order := range orders {
		var orderValue float64
		var farmerItems []models.OrderItem
		for _, item := range order.Items {
			if item.FarmerID == farmerID {
				farmerItems = append(farmerItems, item)
				orderValue += item.Price * float64(item.Quantity)
			}
		}
		if len(farmerItems) == 0 {
			continue
		}

		stats.TotalOrders++
		stats.TotalSales += orderValue

		switch order.Status {
		case models.OrderStatusPending:
			stats.PendingOrders++
		case models.OrderStatusProcessing:
			stats.ProcessingOrders++
		case models.OrderStatusShipped:
			stats.ShippedOrders++
		case models.OrderStatusDelivered:
			stats.DeliveredOrders++
		case models.OrderStatusCancelled:
			stats.CancelledOrders++
		}

		if order.CreatedAt.After(sixMonthsAgo) {
			month := time.Date(order.CreatedAt.Year(), order.CreatedAt.Month(), 1, 0, 0, 0, 0, time.UTC)
			monthly[month] += orderValue
		}

		for _, item := range farmerItems {
			agg, ok := products[item.Name]
			if !ok {
				agg = &productAgg{}
				products[item.Name] = agg
			}
			agg.quantity += item.Quantity
			agg.revenue += item.Price * float64(item.Quantity)
		}
	}

	months := make([]time.Time, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	for _, m := range months {
		stats.MonthlySales = append(stats.MonthlySales, MonthlySales{
			Month: m.Format("Jan 2006"),
			Sales: util.Round2(monthly[m]),
		})
	}

	for name, agg := range products {
		stats.TopProducts = append(stats.TopProducts, TopProduct{
			Name:     name,
			Quantity: agg.quantity,
			Revenue:  util.Round2(agg.revenue),
		})
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		return stats.TopProducts[i].Revenue > stats.TopProducts[j].Revenue
	})
	if len(stats.TopProducts) > 5 {
		stats.TopProducts = stats.TopProducts[:5]
	}

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = util.Round2(stats.TotalSales / float64(stats.TotalOrders))
		stats.OrderCompletionRate = util.Round2(float64(stats.DeliveredOrders) / float64(stats.TotalOrders) * 100)
	}
	stats.TotalSales = util.Round2(stats.TotalSales)

	return stats, nil
}

type FarmerInventory struct {
	TotalProducts  int     `json:"total_products"`
	ActiveProducts int     `json:"active_products"`
	OutOfStock     int     `json:"out_of_stock"`
	LowStock       int     `json:"low_stock"`
	InventoryValue float64 `json:"inventory_value"`
	AverageRating  float64 `json:"average_rating"`
}

// Inventory summarizes a farmer's catalog; low stock means fewer than 10
// units remaining.
func (s *Service) Inventory(ctx context.Context, farmerID uint) (*FarmerInventory, error) {
	products, _, err := s.Products.List(ctx, repo.ProductFilter{FarmerID: farmerID})
	if err != nil {
		return nil, err
	}

	inv := &FarmerInventory{}
	var ratingSum float64
	var rated int
	for _, p := range products {
		inv.TotalProducts++
		if p.IsActive {
			inv.ActiveProducts++
		}
		switch {
		case p.Stock <= 0:
			inv.OutOfStock++
		case p.Stock < 10:
			inv.LowStock++
		}
		inv.InventoryValue += p.Price * float64(p.Stock)
		if p.TotalReviews > 0 {
			ratingSum += p.AverageRating
			rated++
		}
	}
	inv.InventoryValue = util.Round2(inv.InventoryValue)
	if rated > 0 {
		inv.AverageRating = util.Round1(ratingSum / float64(rated))
	}
	return inv, nil
}

type AdminTotals struct {
	Orders   int64   `json:"orders"`
	Users    int64   `json:"users"`
	Farmers  int64   `json:"farmers"`
	Buyers   int64   `json:"buyers"`
	Products int64   `json:"products"`
	Revenue  float64 `json:"revenue"`
}

type AdminStats struct {
	Totals       AdminTotals        `json:"totals"`
	Averages     map[string]float64 `json:"averages"`
	Breakdowns   AdminBreakdowns    `json:"breakdowns"`
	RecentOrders []models.Order     `json:"recent_orders"`
}

type AdminBreakdowns struct {
	OrderStatus   []repo.StatusCount `json:"order_status"`
	PaymentStatus []repo.StatusCount `json:"payment_status"`
}

// Admin computes the platform-wide dashboard totals. Revenue counts paid
// orders only.
func (s *Service) Admin(ctx context.Context, p policy.Principal) (*AdminStats, error) {
	if err := policy.Allow(policy.ActionViewAdminStats, p, policy.Resource{}); err != nil {
		return nil, err
	}

	totalOrders, err := s.Orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalUsers, err := s.Users.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalFarmers, err := s.Users.CountByRole(ctx, models.RoleFarmer)
	if err != nil {
		return nil, err
	}
	totalBuyers, err := s.Users.CountByRole(ctx, models.RoleBuyer)
	if err != nil {
		return nil, err
	}
	totalProducts, err := s.Products.Count(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.Orders.PaidRevenue(ctx)
	if err != nil {
		return nil, err
	}
	statusBreakdown, err := s.Orders.StatusBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	paymentBreakdown, err := s.Orders.PaymentBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.Orders.Recent(ctx, 10)
	if err != nil {
		return nil, err
	}

	var avgOrderValue float64
	if totalOrders > 0 {
		avgOrderValue = revenue / float64(totalOrders)
	}

	return &AdminStats{
		Totals: AdminTotals{
			Orders:   totalOrders,
			Users:    totalUsers,
			Farmers:  totalFarmers,
			Buyers:   totalBuyers,
			Products: totalProducts,
			Revenue:  util.Round2(revenue),
		},
		Averages: map[string]float64{"order_value": util.Round2(avgOrderValue)},
		Breakdowns: AdminBreakdowns{
			OrderStatus:   statusBreakdown,
			PaymentStatus: paymentBreakdown,
		},
		RecentOrders: recent,
	}, nil
}
