package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umlhub/umlhub/api/models"
)

// GormProjectStore implements ProjectStore using GORM
type GormProjectStore struct {
	db *gorm.DB
}

// NewGormProjectStore creates a new GORM-backed project store
func NewGormProjectStore(db *gorm.DB) *GormProjectStore {
	return &GormProjectStore{db: db}
}

// List returns projects, restricted to an owner when one is given
func (s *GormProjectStore) List(ctx context.Context, ownerID *uuid.UUID) ([]models.Project, error) {
	query := s.db.WithContext(ctx).Model(&models.Project{}).Order("created_at DESC")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Create inserts a new project
func (s *GormProjectStore) Create(ctx context.Context, project *models.Project) error {
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// Get returns a project by ID
func (s *GormProjectStore) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// Update saves the project's name
func (s *GormProjectStore) Update(ctx context.Context, project *models.Project) error {
	result := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", project.ID).
		Update("name", project.Name)
	if result.Error != nil {
		return fmt.Errorf("failed to update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a project
func (s *GormProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&models.Project{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
