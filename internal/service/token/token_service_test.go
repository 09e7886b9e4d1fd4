package token

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/models"
)

func newTestService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))

	return &Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func TestIssuePairPersistsRefresh(t *testing.T) {
	svc := newTestService(t)

	access, refresh, err := svc.IssuePair(7, models.RoleBuyer)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	var row models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", refresh).First(&row).Error)
	require.EqualValues(t, 7, row.UserID)
	require.False(t, row.Revoked)

	claims, err := svc.ValidateRefresh(refresh)
	require.NoError(t, err)
	require.EqualValues(t, 7, claims["sub"])
	require.Equal(t, models.RoleBuyer, claims["role"])
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	svc := newTestService(t)

	access, _, err := svc.IssuePair(7, models.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(access)
	require.Error(t, err)
}

func TestRotateRevokesOldToken(t *testing.T) {
	svc := newTestService(t)

	_, refresh, err := svc.IssuePair(7, models.RoleFarmer)
	require.NoError(t, err)

	access2, refresh2, claims, err := svc.Rotate(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access2)
	require.NotEqual(t, refresh, refresh2)
	require.Equal(t, models.RoleFarmer, claims["role"])

	// the old token is burned
	_, err = svc.ValidateRefresh(refresh)
	require.Error(t, err)

	// the new one works
	_, err = svc.ValidateRefresh(refresh2)
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)

	_, refresh, err := svc.IssuePair(7, models.RoleBuyer)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(refresh))

	_, err = svc.ValidateRefresh(refresh)
	require.Error(t, err)

	_, _, _, err = svc.Rotate(refresh)
	require.Error(t, err)
}
