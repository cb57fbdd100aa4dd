package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/umlhub/umlhub/api/models"
	"github.com/umlhub/umlhub/internal/slogging"
)

// DiagramHandler serves diagram CRUD, version history and XMI export
type DiagramHandler struct {
	diagrams DiagramStore
}

// NewDiagramHandler creates a new diagram handler
func NewDiagramHandler(diagrams DiagramStore) *DiagramHandler {
	return &DiagramHandler{diagrams: diagrams}
}

// ListByProject returns a project's diagrams
func (h *DiagramHandler) ListByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid project id"})
		return
	}

	diagrams, err := h.diagrams.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	out := make([]DiagramResponse, 0, len(diagrams))
	for _, d := range diagrams {
		out = append(out, diagramResponse(d))
	}
	c.JSON(http.StatusOK, out)
}

// Create creates a diagram under a project
func (h *DiagramHandler) Create(c *gin.Context) {
	var req CreateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: "name is required"})
		return
	}

	diagram := &models.Diagram{
		ProjectID: req.ProjectID,
		Name:      name,
		Kind:      req.Kind,
		ModelJSON: datatypes.JSON(req.ModelJSON),
	}
	if err := h.diagrams.Create(c.Request.Context(), diagram); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, diagramResponse(*diagram))
}

// Get returns one diagram including its model
func (h *DiagramHandler) Get(c *gin.Context) {
	diagram, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, diagramResponse(*diagram))
}

// Update replaces diagram fields and appends a durable version-history row.
// This history is the authoritative record of the model; the realtime room
// counter is a separate, process-local ordering aid.
func (h *DiagramHandler) Update(c *gin.Context) {
	diagram, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		diagram.Name = name
	}
	if req.Kind != "" {
		diagram.Kind = req.Kind
	}
	if req.ModelJSON != nil {
		diagram.ModelJSON = datatypes.JSON(req.ModelJSON)
	}

	versionID, err := h.diagrams.Update(c.Request.Context(), diagram)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := struct {
		DiagramResponse
		VersionID uuid.UUID `json:"versionId"`
	}{diagramResponse(*diagram), versionID}
	c.JSON(http.StatusOK, resp)
}

// Patch applies an RFC 6902 JSON Patch to the diagram model and appends a
// version-history row
func (h *DiagramHandler) Patch(c *gin.Context) {
	diagram, ok := h.load(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: "Unreadable request body"})
		return
	}
	patch, err := jsonpatch.DecodePatch(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_patch", Message: err.Error()})
		return
	}

	current := []byte(diagram.ModelJSON)
	if len(current) == 0 {
		current = []byte("{}")
	}
	patched, err := patch.Apply(current)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Error{Error: "patch_failed", Message: err.Error()})
		return
	}
	diagram.ModelJSON = datatypes.JSON(patched)

	versionID, err := h.diagrams.Update(c.Request.Context(), diagram)
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := struct {
		DiagramResponse
		VersionID uuid.UUID `json:"versionId"`
	}{diagramResponse(*diagram), versionID}
	c.JSON(http.StatusOK, resp)
}

// Delete removes a diagram and its version history
func (h *DiagramHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid diagram id"})
		return
	}
	if err := h.diagrams.Delete(c.Request.Context(), id); err != nil {
		h.internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListVersions returns the durable version history, newest first
func (h *DiagramHandler) ListVersions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid diagram id"})
		return
	}

	versions, err := h.diagrams.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, err)
		return
	}

	out := make([]DiagramVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, DiagramVersionResponse{ID: v.ID, DiagramID: v.DiagramID, CreatedAt: v.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// ExportXMI renders the diagram's stored model as an XMI 2.1 document
func (h *DiagramHandler) ExportXMI(c *gin.Context) {
	diagram, ok := h.load(c)
	if !ok {
		return
	}

	xml, err := ModelToXMI(json.RawMessage(diagram.ModelJSON), diagram.Name)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Error{Error: "export_failed", Message: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+diagram.Name+`.xmi"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", xml)
}

func (h *DiagramHandler) load(c *gin.Context) (*models.Diagram, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_uuid", Message: "Invalid diagram id"})
		return nil, false
	}

	diagram, err := h.diagrams.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, Error{Error: "not_found"})
		return nil, false
	}
	if err != nil {
		h.internalError(c, err)
		return nil, false
	}
	return diagram, true
}

func (h *DiagramHandler) internalError(c *gin.Context, err error) {
	slogging.Get().WithContext(c).Error("Internal error: %v", err)
	c.JSON(http.StatusInternalServerError, Error{Error: "internal_error"})
}

func diagramResponse(d models.Diagram) DiagramResponse {
	return DiagramResponse{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Name:      d.Name,
		Kind:      d.Kind,
		ModelJSON: json.RawMessage(d.ModelJSON),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
