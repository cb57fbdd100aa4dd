package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umlhub/umlhub/api/models"
	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/slogging"
)

// ProjectHandler serves project CRUD
type ProjectHandler struct {
	projects ProjectStore
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects ProjectStore) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List returns the caller's projects
func (h *ProjectHandler) List(c *gin.Context) {
	ownerID := currentUserID(c)
	projects, err := h.projects.List(c.Request.Context(), ownerID)
	if err != nil {
		slogging.Get().WithContext(c).Error("Failed to list projects: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}

	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// Create creates a project owned by the caller
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: "name is required"})
		return
	}

	project := &models.Project{Name: name, OwnerID: currentUserID(c)}
	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		slogging.Get().WithContext(c).Error("Failed to create project: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, projectResponse(*project))
}

// Get returns one project
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, projectResponse(*project))
}

// Update renames a project; only the owner may modify it
func (h *ProjectHandler) Update(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	if !h.ownedByCaller(c, project) {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: "name is required"})
		return
	}

	project.Name = name
	if err := h.projects.Update(c.Request.Context(), project); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, Error{Error: "not_found"})
			return
		}
		slogging.Get().WithContext(c).Error("Failed to update project: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}
	c.JSON(http.StatusOK, projectResponse(*project))
}

// Delete removes a project; only the owner may delete it
func (h *ProjectHandler) Delete(c *gin.Context) {
	project, ok := h.load(c)
	if !ok {
		return
	}
	if !h.ownedByCaller(c, project) {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), project.ID); err != nil {
		slogging.Get().WithContext(c).Error("Failed to delete project: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) load(c *gin.Context) (*models.Project, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid project id"})
		return nil, false
	}

	project, err := h.projects.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return nil, false
	}
	if err != nil {
		slogging.Get().WithContext(c).Error("Failed to get project: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
		return nil, false
	}
	return project, true
}

// ownedByCaller rejects writes to a project owned by someone else. Ownerless
// projects are writable by any authenticated caller.
func (h *ProjectHandler) ownedByCaller(c *gin.Context, project *models.Project) bool {
	if project.OwnerID == nil {
		return true
	}
	caller := currentUserID(c)
	if caller == nil || *caller != *project.OwnerID {
		c.JSON(http.StatusForbidden, Error{Error: "forbidden", Message: "Not the project owner"})
		return false
	}
	return true
}

func projectResponse(p models.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// currentUserID extracts the authenticated user's ID from the gin context,
// nil when the request is anonymous
func currentUserID(c *gin.Context) *uuid.UUID {
	raw, ok := c.Get(auth.ContextUserID)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw.(string))
	if err != nil {
		return nil
	}
	return &id
}
