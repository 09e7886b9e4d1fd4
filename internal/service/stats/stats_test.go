package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

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

	store := repo.New(db)
	return &Service{Orders: store.Orders, Products: store.Products, Users: store.Users}, db
}

func seedOrder(t *testing.T, db *gorm.DB, n int, status string, items []models.OrderItem) {
	o := models.Order{
		BuyerID:       1,
		TransactionID: fmt.Sprintf("TXN-test-%d", n),
		Status:        status,
		Items:         items,
	}
	require.NoError(t, db.Create(&o).Error)
}

func TestFarmerStats(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	const farmerID = 10
	item := func(name string, price float64, qty int) models.OrderItem {
		return models.OrderItem{ProductID: 1, Name: name, Price: price, Quantity: qty, FarmerID: farmerID, Subtotal: price * float64(qty) * 1.15}
	}

	seedOrder(t, db, 1, models.OrderStatusDelivered, []models.OrderItem{item("Tomatoes", 100, 2)})
	seedOrder(t, db, 2, models.OrderStatusDelivered, []models.OrderItem{item("Tomatoes", 100, 1), item("Onions", 40, 5)})
	seedOrder(t, db, 3, models.OrderStatusPending, []models.OrderItem{item("Onions", 40, 2)})
	seedOrder(t, db, 4, models.OrderStatusCancelled, []models.OrderItem{item("Teff", 150, 1)})
	// another farmer's order must not count
	seedOrder(t, db, 5, models.OrderStatusDelivered, []models.OrderItem{
		{ProductID: 2, Name: "Chili", Price: 80, Quantity: 1, FarmerID: 99, Subtotal: 92},
	})

	st, err := svc.Farmer(ctx, farmerID)
	require.NoError(t, err)

	require.Equal(t, 4, st.TotalOrders)
	require.Equal(t, 2, st.DeliveredOrders)
	require.Equal(t, 1, st.PendingOrders)
	require.Equal(t, 1, st.CancelledOrders)

	// 200 + (100 + 200) + 80 + 150 = 730
	require.Equal(t, 730.0, st.TotalSales)
	require.Equal(t, 182.5, st.AverageOrderValue)
	require.Equal(t, 50.0, st.OrderCompletionRate)

	require.NotEmpty(t, st.MonthlySales)
	require.Equal(t, time.Now().Format("Jan 2006"), st.MonthlySales[len(st.MonthlySales)-1].Month)

	require.NotEmpty(t, st.TopProducts)
	require.Equal(t, "Tomatoes", st.TopProducts[0].Name)
	require.Equal(t, 300.0, st.TopProducts[0].Revenue)
	require.Equal(t, 3, st.TopProducts[0].Quantity)
}

func TestFarmerStatsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	st, err := svc.Farmer(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, st.TotalOrders)
	require.Zero(t, st.AverageOrderValue)
	require.Empty(t, st.MonthlySales)
	require.Empty(t, st.TopProducts)
}

func TestInventory(t *testing.T) {
	svc, db := newTestService(t)

	const farmerID = 10
	products := []models.Product{
		{Name: "Tomatoes", Price: 100, Unit: "kg", Category: "vegetable", Stock: 50, FarmerID: farmerID, IsActive: true, AverageRating: 4.5, TotalReviews: 2},
		{Name: "Onions", Price: 40, Unit: "kg", Category: "vegetable", Stock: 5, FarmerID: farmerID, IsActive: true, AverageRating: 3.5, TotalReviews: 1},
		{Name: "Teff", Price: 150, Unit: "kg", Category: "grain", Stock: 0, FarmerID: farmerID, IsActive: false},
	}
	for i := range products {
		require.NoError(t, db.Create(&products[i]).Error)
	}
	// unrelated farmer
	require.NoError(t, db.Create(&models.Product{Name: "Chili", Price: 80, Unit: "kg", Category: "spice", Stock: 3, FarmerID: 99, IsActive: true}).Error)

	inv, err := svc.Inventory(context.Background(), farmerID)
	require.NoError(t, err)

	require.Equal(t, 3, inv.TotalProducts)
	require.Equal(t, 2, inv.ActiveProducts)
	require.Equal(t, 1, inv.OutOfStock)
	require.Equal(t, 1, inv.LowStock)
	require.Equal(t, 5200.0, inv.InventoryValue)
	require.Equal(t, 4.0, inv.AverageRating)
}

func TestAdminStats(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	users := []models.User{
		{FullName: "Buyer One", Email: "b1@example.com", PasswordHash: "x", Role: models.RoleBuyer},
		{FullName: "Farmer One", Email: "f1@example.com", PasswordHash: "x", Role: models.RoleFarmer},
		{FullName: "Admin", Email: "a@example.com", PasswordHash: "x", Role: models.RoleAdmin},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}
	require.NoError(t, db.Create(&models.Product{Name: "Tomatoes", Price: 100, Unit: "kg", Category: "vegetable", Stock: 10, FarmerID: 2, IsActive: true}).Error)

	require.NoError(t, db.Create(&models.Order{BuyerID: 1, TransactionID: "TXN-test-1", Status: models.OrderStatusDelivered, PaymentStatus: models.PaymentStatusPaid, TotalPrice: 280}).Error)
	require.NoError(t, db.Create(&models.Order{BuyerID: 1, TransactionID: "TXN-test-2", Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending, TotalPrice: 96}).Error)

	_, err := svc.Admin(ctx, policy.Principal{ID: 1, Role: models.RoleBuyer})
	require.True(t, errors.Is(err, domain.ErrForbidden))

	st, err := svc.Admin(ctx, policy.Principal{ID: 3, Role: models.RoleAdmin})
	require.NoError(t, err)

	require.EqualValues(t, 2, st.Totals.Orders)
	require.EqualValues(t, 3, st.Totals.Users)
	require.EqualValues(t, 1, st.Totals.Farmers)
	require.EqualValues(t, 1, st.Totals.Buyers)
	require.EqualValues(t, 1, st.Totals.Products)
	require.Equal(t, 280.0, st.Totals.Revenue)
	require.Equal(t, 140.0, st.Averages["order_value"])
	require.Len(t, st.Breakdowns.OrderStatus, 2)
	require.Len(t, st.Breakdowns.PaymentStatus, 2)
	require.Len(t, st.RecentOrders, 2)
}
