package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umlhub/umlhub/api/models"
	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/slogging"
)

const refreshCookieName = "refresh_token"

// AuthHandler serves register, login, refresh and logout
type AuthHandler struct {
	users   UserStore
	service *auth.Service
	// secureCookies marks refresh cookies Secure; on in production
	secureCookies bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, service *auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{users: users, service: service, secureCookies: secureCookies}
}

// Register creates an account and returns tokens
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	if _, err := h.users.GetByEmail(c.Request.Context(), req.Email); err == nil {
		c.JSON(http.StatusConflict, Error{Error: "email_taken", Message: "Email is already registered"})
		return
	} else if !errors.Is(err, ErrNotFound) {
		h.internalError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(c, err)
		return
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		h.internalError(c, err)
		return
	}

	h.issueTokens(c, user, http.StatusCreated)
}

// Login authenticates an account and returns tokens
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusUnauthorized, Error{Error: "invalid_credentials", Message: "Invalid email or password"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, Error{Error: "invalid_credentials", Message: "Invalid email or password"})
		return
	}

	h.issueTokens(c, user, http.StatusOK)
}

// Refresh exchanges a refresh cookie for a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie == "" {
		c.JSON(http.StatusUnauthorized, Error{Error: "unauthorized", Message: "No refresh token"})
		return
	}

	userID, err := h.service.ValidateRefreshToken(cookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Error{Error: "unauthorized", Message: "Invalid refresh token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Error{Error: "unauthorized", Message: "Unknown user"})
		return
	}

	access, err := h.service.GenerateAccessToken(user.ID, user.Email, user.Name)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, RefreshResponse{AccessToken: access})
}

// Logout revokes the presented access token and clears the refresh cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if err := h.service.RevokeAccessToken(c.Request.Context(), token); err != nil {
			slogging.Get().WithContext(c).Warn("Failed to revoke access token: %v", err)
		}
	}
	c.SetCookie(refreshCookieName, "", -1, "/", "", h.secureCookies, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User, status int) {
	access, err := h.service.GenerateAccessToken(user.ID, user.Email, user.Name)
	if err != nil {
		h.internalError(c, err)
		return
	}
	refresh, err := h.service.GenerateRefreshToken(user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, refresh,
		int(h.service.RefreshTokenDuration()/time.Second), "/", "", h.secureCookies, true)

	c.JSON(status, AuthResponse{
		User:        userResponse(user),
		AccessToken: access,
	})
}

func (h *AuthHandler) internalError(c *gin.Context, err error) {
	slogging.Get().WithContext(c).Error("Internal error: %v", err)
	c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
}
