// Package token issues and rotates the access/refresh JWT pair. Refresh
// tokens are persisted so they can be revoked; access tokens are
// stateless.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func SignAccessToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func SignRefreshToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
		"jti":  fmt.Sprintf("%d-%d", userID, time.Now().UnixNano()),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// IssuePair signs both tokens and persists the refresh token row.
func (t *Service) IssuePair(userID uint, role string) (access, refresh string, err error) {
	access, err = SignAccessToken(userID, role, t.JWTSecret)
	if err != nil {
		return "", "", err
	}
	refresh, err = SignRefreshToken(userID, role, t.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	if err := t.saveRefresh(refresh, userID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (t *Service) saveRefresh(token string, userID uint) error {
	row := models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
	}
	if err := t.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// ValidateRefresh checks signature, type, and the stored row.
func (t *Service) ValidateRefresh(raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.RefreshSecret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	if typ, ok := claims["typ"]; !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}

	var stored models.RefreshToken
	if err := t.DB.Where("token = ?", raw).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("refresh token not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, errors.New("refresh token expired")
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh pair, revoking the
// old token.
func (t *Service) Rotate(raw string) (access, refresh string, claims jwt.MapClaims, err error) {
	claims, err = t.ValidateRefresh(raw)
	if err != nil {
		return "", "", nil, err
	}

	userID := uint(claims["sub"].(float64))
	role, _ := claims["role"].(string)

	access, err = SignAccessToken(userID, role, t.JWTSecret)
	if err != nil {
		return "", "", nil, err
	}
	refresh, err = SignRefreshToken(userID, role, t.RefreshSecret)
	if err != nil {
		return "", "", nil, err
	}

	if err := t.DB.Model(&models.RefreshToken{}).Where("token = ?", raw).
		Update("revoked", true).Error; err != nil {
		return "", "", nil, err
	}
	if err := t.saveRefresh(refresh, userID); err != nil {
		return "", "", nil, err
	}

	return access, refresh, claims, nil
}

// Revoke marks a refresh token unusable; used by logout.
func (t *Service) Revoke(raw string) error {
	return t.DB.Model(&models.RefreshToken{}).Where("token = ?", raw).
		Update("revoked", true).Error
}
