// Package http wires the handler set onto the echo router.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/handlers"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/service/token"
)

type Deps struct {
	Auth     *handlers.AuthHandler
	Products *handlers.ProductHandler
	Orders   *handlers.OrderHandler
	Reviews  *handlers.ReviewHandler
	Search   *handlers.SearchHandler
	Tokens   *token.Service

	DB        *gorm.DB
	UploadDir string
}

func Register(e *echo.Echo, d Deps) {
	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.Static("/uploads", d.UploadDir)

	v1 := e.Group("/api/v1")

	// public
	v1.POST("/auth/register", d.Auth.Register)
	v1.POST("/auth/login", d.Auth.Login)
	v1.POST("/auth/logout", d.Auth.Logout)
	v1.GET("/auth/verify-email", d.Auth.VerifyEmail)
	v1.POST("/auth/resend-verification", d.Auth.ResendVerification)
	v1.POST("/auth/forgot-password", d.Auth.ForgotPassword)
	v1.POST("/auth/reset-password", d.Auth.ResetPassword)

	v1.GET("/products", d.Products.List)
	v1.GET("/products/:id", d.Products.Get)
	v1.GET("/search", d.Search.Search)
	v1.GET("/reviews/product/:productId", d.Reviews.ListByProduct)

	// any authenticated user
	authed := v1.Group("", d.Tokens.Require())
	authed.GET("/auth/profile", d.Auth.GetProfile)
	authed.PUT("/auth/profile", d.Auth.UpdateProfile)

	authed.POST("/orders", d.Orders.Create)
	authed.GET("/orders", d.Orders.ListBuyer)
	authed.GET("/orders/:id", d.Orders.Get)
	authed.PUT("/orders/:id/status", d.Orders.UpdateStatus)
	authed.PUT("/orders/:id/payment-status", d.Orders.UpdatePaymentStatus)

	authed.POST("/reviews", d.Reviews.Add)
	authed.PUT("/reviews/:id", d.Reviews.Update)
	authed.DELETE("/reviews/:id", d.Reviews.Delete)
	authed.POST("/reviews/:id/helpful", d.Reviews.MarkHelpful)
	authed.POST("/reviews/:id/report", d.Reviews.Report)

	// farmers
	farmer := v1.Group("/farmer", d.Tokens.Require(models.RoleFarmer))
	farmer.POST("/products", d.Products.Create)
	farmer.PUT("/products/:id", d.Products.Update)
	farmer.DELETE("/products/:id", d.Products.Delete)
	farmer.GET("/products", d.Products.ListFarmer)
	farmer.GET("/products/stats", d.Products.FarmerInventory)
	farmer.GET("/orders", d.Orders.ListFarmer)
	farmer.GET("/orders/stats", d.Orders.FarmerStats)

	// admins
	admin := v1.Group("/admin", d.Tokens.Require(models.RoleAdmin))
	admin.GET("/orders", d.Orders.ListAdmin)
	admin.GET("/stats", d.Orders.AdminStats)
	admin.GET("/products", d.Products.ListAdmin)
	admin.PUT("/products/:id/status", d.Products.Moderate)
	admin.DELETE("/products/:id", d.Products.AdminDelete)
	admin.GET("/reviews", d.Reviews.ListAdmin)
}
