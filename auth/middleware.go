package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umlhub/umlhub/internal/slogging"
)

// Context keys set by the middleware
const (
	ContextUserID          = "userID"
	ContextUserEmail       = "userEmail"
	ContextUserName        = "userName"
	ContextShareDiagramID  = "shareDiagramID"
	ContextSharePermission = "sharePermission"
)

// ShareChecker reports whether a share grant is still active (not revoked,
// not expired). Implemented by the share link store.
type ShareChecker interface {
	IsShareActive(ctx context.Context, jti uuid.UUID) (bool, error)
}

// Middleware provides authentication middleware for gin
type Middleware struct {
	service *Service
	shares  ShareChecker
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(service *Service, shares ShareChecker) *Middleware {
	slogging.Get().Info("Initializing authentication middleware")
	return &Middleware{service: service, shares: shares}
}

// AuthRequired requires a valid Bearer access token
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.resolveUser(c) {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// AuthOptional resolves a Bearer token or share token when present but never
// rejects the request. Guards downstream decide what identity is sufficient.
func (m *Middleware) AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.resolveUser(c)
		m.resolveShare(c)
		c.Next()
	}
}

// RequireDiagramView allows an authenticated user, or a share token (any
// permission) bound to the diagram in the `id` path parameter.
func (m *Middleware) RequireDiagramView() gin.HandlerFunc {
	return m.requireDiagramAccess(false)
}

// RequireDiagramEdit allows an authenticated user, or an edit-permission
// share token bound to the diagram in the `id` path parameter.
func (m *Middleware) RequireDiagramEdit() gin.HandlerFunc {
	return m.requireDiagramAccess(true)
}

func (m *Middleware) requireDiagramAccess(needEdit bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserID); ok {
			c.Next()
			return
		}

		diagramID, _ := c.Get(ContextShareDiagramID)
		permission, _ := c.Get(ContextSharePermission)
		if diagramID == c.Param("id") && (!needEdit || permission == SharePermissionEdit) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "forbidden",
		})
	}
}

// resolveUser validates a Bearer access token and fills the user context keys.
// Returns true if an authenticated user is in context afterwards.
func (m *Middleware) resolveUser(c *gin.Context) bool {
	if _, ok := c.Get(ContextUserID); ok {
		return true
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}

	claims, err := m.service.ValidateAccessToken(c.Request.Context(), parts[1])
	if err != nil {
		slogging.Get().WithContext(c).Debug("Token validation failed: %v", err)
		return false
	}

	c.Set(ContextUserID, claims.Subject)
	c.Set(ContextUserEmail, claims.Email)
	c.Set(ContextUserName, claims.Name)
	return true
}

// resolveShare validates a share token from the `Share` auth scheme, the
// X-Share-Token header, or the `share` query parameter, and fills the share
// context keys. Invalid tokens are ignored, not rejected.
func (m *Middleware) resolveShare(c *gin.Context) {
	token := extractShareToken(c)
	if token == "" {
		return
	}

	claims, err := m.service.ValidateShareToken(token)
	if err != nil {
		slogging.Get().WithContext(c).Debug("Share token validation failed: %v", err)
		return
	}

	if m.shares != nil {
		jti, err := uuid.Parse(claims.ID)
		if err != nil {
			return
		}
		active, err := m.shares.IsShareActive(c.Request.Context(), jti)
		if err != nil || !active {
			return
		}
	}

	c.Set(ContextShareDiagramID, claims.DiagramID)
	c.Set(ContextSharePermission, claims.Permission)
}

func extractShareToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Share ") {
		return strings.TrimSpace(auth[len("Share "):])
	}
	if t := c.GetHeader("X-Share-Token"); t != "" {
		return t
	}
	return c.Query("share")
}
