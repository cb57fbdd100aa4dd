package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/umlhub/umlhub/api/models"
)

// ErrNotFound is returned by stores when the requested row does not exist
var ErrNotFound = errors.New("not found")

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// List returns a page of users matching the search term (empty matches
	// all), newest first, along with the total match count.
	List(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectStore persists projects
type ProjectStore interface {
	List(ctx context.Context, ownerID *uuid.UUID) ([]models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DiagramStore persists diagrams and their append-only version history.
// This is the durable version history the realtime engine deliberately does
// not own; its in-memory room counter is unrelated to these rows.
type DiagramStore interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Diagram, error)
	Create(ctx context.Context, diagram *models.Diagram) error
	Get(ctx context.Context, id uuid.UUID) (*models.Diagram, error)
	// Update saves the diagram and appends a row to diagram_versions in the
	// same transaction, returning the new version row's ID.
	Update(ctx context.Context, diagram *models.Diagram) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListVersions(ctx context.Context, diagramID uuid.UUID) ([]models.DiagramVersion, error)
}

// ShareStore persists share-link grants
type ShareStore interface {
	Create(ctx context.Context, link *models.ShareLink) error
	GetByJTI(ctx context.Context, jti uuid.UUID) (*models.ShareLink, error)
	Revoke(ctx context.Context, jti uuid.UUID, at time.Time) error
	// IsShareActive reports whether the grant exists, is unrevoked and unexpired
	IsShareActive(ctx context.Context, jti uuid.UUID) (bool, error)
}
