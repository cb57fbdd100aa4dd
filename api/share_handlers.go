package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umlhub/umlhub/api/models"
	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/slogging"
)

// ShareHandler serves share link creation and revocation
type ShareHandler struct {
	shares  ShareStore
	service *auth.Service
	// frontendOrigin is the base used when building share URLs; when empty
	// the request's own scheme and host are used
	frontendOrigin  string
	defaultTTLHours int
}

// NewShareHandler creates a new share handler
func NewShareHandler(shares ShareStore, service *auth.Service, frontendOrigin string, defaultTTLHours int) *ShareHandler {
	if defaultTTLHours <= 0 {
		defaultTTLHours = 168
	}
	return &ShareHandler{
		shares:          shares,
		service:         service,
		frontendOrigin:  frontendOrigin,
		defaultTTLHours: defaultTTLHours,
	}
}

// Create creates a share link for a diagram and returns the signed token
// and frontend URL
func (h *ShareHandler) Create(c *gin.Context) {
	diagramID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid diagram id"})
		return
	}

	var req CreateShareRequest
	// Body is optional; all fields have defaults
	_ = c.ShouldBindJSON(&req)

	permission := auth.SharePermissionEdit
	if req.Permission == auth.SharePermissionView {
		permission = auth.SharePermissionView
	}

	ttl := time.Duration(h.defaultTTLHours) * time.Hour
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}
	expiresAt := time.Now().UTC().Add(ttl)
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
		ttl = time.Until(expiresAt)
	}

	link := &models.ShareLink{
		DiagramID:  diagramID,
		CreatedBy:  currentUserID(c),
		Permission: permission,
		ExpiresAt:  expiresAt,
	}
	if err := h.shares.Create(c.Request.Context(), link); err != nil {
		slogging.Get().WithContext(c).Error("Failed to create share link: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}

	token, err := h.service.GenerateShareToken(link.JTI, diagramID, permission, ttl)
	if err != nil {
		slogging.Get().WithContext(c).Error("Failed to sign share token: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}

	c.JSON(http.StatusOK, ShareResponse{
		JTI:        link.JTI,
		Permission: link.Permission,
		ExpiresAt:  link.ExpiresAt,
		URL:        h.shareURL(c, diagramID, token),
		Token:      token,
	})
}

// Revoke marks a share link revoked
func (h *ShareHandler) Revoke(c *gin.Context) {
	jti, err := uuid.Parse(c.Param("jti"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid share id"})
		return
	}

	if _, err := h.shares.GetByJTI(c.Request.Context(), jti); errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return
	} else if err != nil {
		slogging.Get().WithContext(c).Error("Failed to look up share link: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}

	if err := h.shares.Revoke(c.Request.Context(), jti, time.Now().UTC()); err != nil {
		slogging.Get().WithContext(c).Error("Failed to revoke share link: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ShareHandler) shareURL(c *gin.Context, diagramID uuid.UUID, token string) string {
	base := h.frontendOrigin
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	return fmt.Sprintf("%s/diagram/%s?share=%s", base, diagramID, url.QueryEscape(token))
}
