package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/hash"
	"github.com/mekonnend/ourlocalmarket/internal/models"
	"github.com/mekonnend/ourlocalmarket/internal/service/token"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = 10 * time.Minute
)

type AuthHandler struct {
	DB         *gorm.DB
	Tokens     *token.Service
	Producer   *events.Producer
	Production bool
}

type registerRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Address      string `json:"address"`
	City         string `json:"city"`
	FarmName     string `json:"farm_name"`
	FarmLocation string `json:"farm_location"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return fail(c, http.StatusBadRequest, "full name, email and password are required")
	}
	if len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	}
	if req.Role != models.RoleBuyer && req.Role != models.RoleFarmer {
		return fail(c, http.StatusBadRequest, "role must be buyer or farmer")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fail(c, http.StatusConflict, "an account with this email already exists")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	verifyToken := randomToken()
	expires := time.Now().Add(verificationTTL)

	user := models.User{
		FullName:            strings.TrimSpace(req.FullName),
		Email:               req.Email,
		Phone:               req.Phone,
		PasswordHash:        pwHash,
		Role:                req.Role,
		Address:             req.Address,
		City:                req.City,
		FarmName:            req.FarmName,
		FarmLocation:        req.FarmLocation,
		VerificationToken:   verifyToken,
		VerificationExpires: &expires,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicUserEvents, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"role":   user.Role,
	})
	publish(c, h.Producer, events.TopicNotificationEvents, map[string]any{
		"type":  "verification_email",
		"email": user.Email,
		"name":  user.FullName,
		"token": verifyToken,
	})

	return respond(c, http.StatusCreated, echo.Map{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user,
	})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	tokenParam := c.QueryParam("token")
	if tokenParam == "" {
		return fail(c, http.StatusBadRequest, "verification token is required")
	}

	var user models.User
	err := h.DB.Where("verification_token = ?", tokenParam).First(&user).Error
	if err != nil || user.VerificationExpires == nil || time.Now().After(*user.VerificationExpires) {
		return fail(c, http.StatusBadRequest, "verification token is invalid or has expired")
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationExpires = nil
	if err := h.DB.Save(&user).Error; err != nil {
		return writeError(c, err, h.Production)
	}

	publish(c, h.Producer, events.TopicUserEvents, map[string]any{
		"type":   "user_verified",
		"userID": user.ID,
	})

	return respond(c, http.StatusOK, echo.Map{"message": "Email verified successfully. You can now log in."})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err == nil && !user.IsVerified {
		verifyToken := randomToken()
		expires := time.Now().Add(verificationTTL)
		user.VerificationToken = verifyToken
		user.VerificationExpires = &expires
		if err := h.DB.Save(&user).Error; err != nil {
			return writeError(c, err, h.Production)
		}
		publish(c, h.Producer, events.TopicNotificationEvents, map[string]any{
			"type":  "verification_email",
			"email": user.Email,
			"name":  user.FullName,
			"token": verifyToken,
		})
	}

	// same response whether or not the account exists
	return respond(c, http.StatusOK, echo.Map{"message": "If the account exists, a verification email has been sent."})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil || !hash.CheckPassword(user.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if !user.IsVerified {
		return fail(c, http.StatusForbidden, "Please verify your email before logging in")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := h.DB.Save(&user).Error; err != nil {
		return writeError(c, err, h.Production)
	}

	access, refresh, err := h.Tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	c.SetCookie(token.CreateCookie("accessToken", access, "/", now.Add(token.AccessTTL)))
	c.SetCookie(token.CreateCookie("refreshToken", refresh, "/", now.Add(token.RefreshTTL)))

	publish(c, h.Producer, events.TopicUserEvents, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})

	return respond(c, http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          user,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		if err := h.Tokens.Revoke(cookie.Value); err != nil {
			return writeError(c, err, h.Production)
		}
	}

	expired := time.Unix(0, 0)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))

	return respond(c, http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err == nil {
		resetToken := randomToken()
		expires := time.Now().Add(resetTTL)
		user.ResetToken = resetToken
		user.ResetExpires = &expires
		if err := h.DB.Save(&user).Error; err != nil {
			return writeError(c, err, h.Production)
		}
		publish(c, h.Producer, events.TopicNotificationEvents, map[string]any{
			"type":  "password_reset_email",
			"email": user.Email,
			"name":  user.FullName,
			"token": resetToken,
		})
	}

	return respond(c, http.StatusOK, echo.Map{"message": "If the account exists, a password reset email has been sent."})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	}

	var user models.User
	err := h.DB.Where("reset_token = ?", req.Token).First(&user).Error
	if err != nil || user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		return fail(c, http.StatusBadRequest, "reset token is invalid or has expired")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	user.PasswordHash = pwHash
	user.ResetToken = ""
	user.ResetExpires = nil
	if err := h.DB.Save(&user).Error; err != nil {
		return writeError(c, err, h.Production)
	}

	return respond(c, http.StatusOK, echo.Map{"message": "Password reset successfully. You can now log in."})
}

func (h *AuthHandler) GetProfile(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var user models.User
	if err := h.DB.First(&user, p.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"user": user})
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	p, err := principalFrom(c)
	if err != nil {
		return writeError(c, err, h.Production)
	}

	var req struct {
		FullName     *string `json:"full_name"`
		Phone        *string `json:"phone"`
		Address      *string `json:"address"`
		City         *string `json:"city"`
		FarmName     *string `json:"farm_name"`
		FarmLocation *string `json:"farm_location"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.First(&user, p.ID).Error; err != nil {
		return fail(c, http.StatusNotFound, "user not found")
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.City != nil {
		user.City = *req.City
	}
	if req.FarmName != nil {
		user.FarmName = *req.FarmName
	}
	if req.FarmLocation != nil {
		user.FarmLocation = *req.FarmLocation
	}

	if err := h.DB.Save(&user).Error; err != nil {
		return writeError(c, err, h.Production)
	}
	return respond(c, http.StatusOK, echo.Map{"message": "Profile updated", "user": user})
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
