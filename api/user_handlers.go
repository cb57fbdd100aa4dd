package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umlhub/umlhub/api/models"
	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/slogging"
)

const (
	defaultUserPageSize = 10
	maxUserPageSize     = 100
)

// UserHandler serves the user administration surface: the caller's own
// profile plus list/get/create/update/delete over accounts. Self-service
// signup lives on AuthHandler; Create here provisions accounts without
// issuing tokens.
type UserHandler struct {
	users UserStore
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the authenticated caller's profile
func (h *UserHandler) Me(c *gin.Context) {
	id := currentUserID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, Error{Error: "unauthorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), *id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// List returns a page of users, optionally filtered by a search term
// matching name or email
func (h *UserHandler) List(c *gin.Context) {
	search := strings.TrimSpace(c.Query("q"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultUserPageSize)))
	if pageSize < 1 {
		pageSize = defaultUserPageSize
	}
	if pageSize > maxUserPageSize {
		pageSize = maxUserPageSize
	}

	users, total, err := h.users.List(c.Request.Context(), search, pageSize, (page-1)*pageSize)
	if err != nil {
		h.internalError(c, err)
		return
	}

	items := make([]UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	c.JSON(http.StatusOK, UserListResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Get returns one user
func (h *UserHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid user id"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// Create provisions an account for someone else; no tokens are issued
func (h *UserHandler) Create(c *gin.Context) {
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
	c.JSON(http.StatusCreated, userResponse(user))
}

// Update replaces a user's name and email, and rotates the password when
// one is supplied
func (h *UserHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid user id"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := h.users.GetByEmail(c.Request.Context(), email); err == nil {
		if existing.ID != user.ID {
			c.JSON(http.StatusConflict, Error{Error: "email_taken", Message: "Email is already registered"})
			return
		}
	} else if !errors.Is(err, ErrNotFound) {
		h.internalError(c, err)
		return
	}

	user.Name = strings.TrimSpace(req.Name)
	user.Email = email
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.internalError(c, err)
			return
		}
		user.PasswordHash = hash
	}

	if err := h.users.Update(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, Error{Error: "not_found"})
			return
		}
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// Delete removes a user. Callers cannot delete their own account.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid user id"})
		return
	}

	if caller := currentUserID(c); caller != nil && *caller == id {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: "Cannot delete your own account"})
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, Error{Error: "not_found"})
			return
		}
		h.internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) internalError(c *gin.Context, err error) {
	slogging.Get().WithContext(c).Error("Internal error: %v", err)
	c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
