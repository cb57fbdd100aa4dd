package api

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/umlhub/umlhub/internal/slogging"
)

// ExportHandler converts standalone models (not yet saved as diagrams)
// to XMI documents and Spring Boot project archives
type ExportHandler struct{}

// NewExportHandler creates a new export handler
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// XMI converts a posted model to an XMI 2.1 document
func (h *ExportHandler) XMI(c *gin.Context) {
	var req ExportXMIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	doc, err := ModelToXMI(req.Model, req.Name)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Error{Error: "export_failed", Message: err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "model"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xmi"))
	c.Data(http.StatusOK, "application/xml", doc)
}

// SpringBoot converts a posted model to a zipped Spring Boot project
func (h *ExportHandler) SpringBoot(c *gin.Context) {
	var req GenerateSpringBootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}

	artifactID := strings.TrimSpace(req.ArtifactID)
	if artifactID == "" {
		artifactID = "backend"
	}

	files, err := GenerateSpringBoot(req.Model, strings.TrimSpace(req.GroupID), artifactID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Error{Error: "generation_failed", Message: err.Error()})
		return
	}

	archive, err := zipFiles(files)
	if err != nil {
		logger := slogging.GetContextLogger(c)
		logger.Error("Failed to build project archive: %v", err)
		c.JSON(http.StatusInternalServerError, Error{Error: "internal_error", Message: "Failed to build archive"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifactID+"-springboot.zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

// zipFiles writes the generated file set into a zip archive with
// deterministic entry ordering
func zipFiles(files map[string]string) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, p := range paths {
		f, err := w.Create(p)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(files[p])); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
