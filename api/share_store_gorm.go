package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umlhub/umlhub/api/models"
)

// GormShareStore implements ShareStore using GORM. It also satisfies
// auth.ShareChecker so the middleware can validate share tokens against the
// revocation state.
type GormShareStore struct {
	db *gorm.DB
}

// NewGormShareStore creates a new GORM-backed share link store
func NewGormShareStore(db *gorm.DB) *GormShareStore {
	return &GormShareStore{db: db}
}

// Create inserts a new share link grant
func (s *GormShareStore) Create(ctx context.Context, link *models.ShareLink) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// GetByJTI returns a share link by its token ID
func (s *GormShareStore) GetByJTI(ctx context.Context, jti uuid.UUID) (*models.ShareLink, error) {
	var link models.ShareLink
	err := s.db.WithContext(ctx).First(&link, "jti = ?", jti).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return &link, nil
}

// Revoke marks a share link revoked. Revoking twice keeps the first timestamp.
func (s *GormShareStore) Revoke(ctx context.Context, jti uuid.UUID, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.ShareLink{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke share link: %w", result.Error)
	}
	return nil
}

// IsShareActive reports whether the grant exists, is unrevoked and unexpired
func (s *GormShareStore) IsShareActive(ctx context.Context, jti uuid.UUID) (bool, error) {
	link, err := s.GetByJTI(ctx, jti)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if link.RevokedAt != nil {
		return false, nil
	}
	return link.ExpiresAt.After(time.Now()), nil
}
