package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umlhub/umlhub/api/models"
)

// GormDiagramStore implements DiagramStore using GORM
type GormDiagramStore struct {
	db *gorm.DB
}

// NewGormDiagramStore creates a new GORM-backed diagram store
func NewGormDiagramStore(db *gorm.DB) *GormDiagramStore {
	return &GormDiagramStore{db: db}
}

// ListByProject returns a project's diagrams, most recently updated first
func (s *GormDiagramStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Diagram, error) {
	var diagrams []models.Diagram
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&diagrams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}
	return diagrams, nil
}

// Create inserts a new diagram
func (s *GormDiagramStore) Create(ctx context.Context, diagram *models.Diagram) error {
	if diagram.Kind == "" {
		diagram.Kind = "class"
	}
	if err := s.db.WithContext(ctx).Create(diagram).Error; err != nil {
		return fmt.Errorf("failed to create diagram: %w", err)
	}
	return nil
}

// Get returns a diagram by ID
func (s *GormDiagramStore) Get(ctx context.Context, id uuid.UUID) (*models.Diagram, error) {
	var diagram models.Diagram
	err := s.db.WithContext(ctx).First(&diagram, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	return &diagram, nil
}

// Update saves the diagram and appends a version-history row in the same
// transaction. The version row captures the model as written.
func (s *GormDiagramStore) Update(ctx context.Context, diagram *models.Diagram) (uuid.UUID, error) {
	version := models.DiagramVersion{
		DiagramID: diagram.ID,
		ModelJSON: diagram.ModelJSON,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Diagram{}).
			Where("id = ?", diagram.ID).
			Updates(map[string]any{
				"name":       diagram.Name,
				"kind":       diagram.Kind,
				"model_json": diagram.ModelJSON,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&version).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to update diagram: %w", err)
	}
	return version.ID, nil
}

// Delete removes a diagram and its version history
func (s *GormDiagramStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DiagramVersion{}, "diagram_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete diagram versions: %w", err)
		}
		if err := tx.Delete(&models.Diagram{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete diagram: %w", err)
		}
		return nil
	})
}

// ListVersions returns the version history of a diagram, newest first
func (s *GormDiagramStore) ListVersions(ctx context.Context, diagramID uuid.UUID) ([]models.DiagramVersion, error) {
	var versions []models.DiagramVersion
	err := s.db.WithContext(ctx).
		Where("diagram_id = ?", diagramID).
		Order("created_at DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list diagram versions: %w", err)
	}
	return versions, nil
}
