package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/config"
	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/hash"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/service/order"
	"github.com/mekonnend/ourlocalmarket/internal/service/review"
	"github.com/mekonnend/ourlocalmarket/internal/service/stats"
	"github.com/mekonnend/ourlocalmarket/internal/service/token"
)

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	Tokens  *token.Service
	Auth    *AuthHandler
	Orders  *OrderHandler
	Reviews *ReviewHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	store := repo.New(db)
	producer := events.NewProducer(nil)
	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}

	orderSvc := &order.Service{Orders: store.Orders, Products: store.Products}
	reviewSvc := &review.Service{Reviews: store.Reviews, Products: store.Products, Orders: store.Orders, Users: store.Users}
	statsSvc := &stats.Service{Orders: store.Orders, Products: store.Products, Users: store.Users}

	return &testEnv{
		E:      echo.New(),
		DB:     db,
		Tokens: tokens,
		Auth: &AuthHandler{
			DB:       db,
			Tokens:   tokens,
			Producer: producer,
		},
		Orders: &OrderHandler{
			Orders:   orderSvc,
			Stats:    statsSvc,
			Producer: producer,
		},
		Reviews: &ReviewHandler{
			Reviews:  reviewSvc,
			Producer: producer,
		},
	}
}

func (env *testEnv) doJSON(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

// asUser fills the context keys the auth middleware would set.
func asUser(c echo.Context, id uint, role string) {
	c.Set(token.ContextUserID, id)
	c.Set(token.ContextRole, role)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (env *testEnv) seedUser(t *testing.T, name, email, role string) models.User {
	pw, err := hash.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{
		FullName:     name,
		Email:        email,
		PasswordHash: pw,
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(t, env.DB.Create(&u).Error)
	return u
}

func (env *testEnv) seedProduct(t *testing.T, farmerID uint, name string, price float64, stock int) models.Product {
	p := models.Product{
		Name:     name,
		Price:    price,
		Unit:     "kg",
		Category: "vegetable",
		Stock:    stock,
		FarmerID: farmerID,
		IsActive: true,
	}
	require.NoError(t, env.DB.Create(&p).Error)
	return p
}
