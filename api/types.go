// Package api implements the HTTP and realtime surface of the collaborative
// UML diagram editor: REST CRUD over users, projects, diagrams and share
// links, XMI export, Spring Boot code generation, and the in-memory
// websocket collaboration engine.
package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Error is the JSON body returned for every HTTP failure
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RegisterRequest creates a new account
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest authenticates an existing account
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public shape of a user
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateUserRequest replaces a user's profile; the password is optional and
// keeps its current value when omitted
type UpdateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

// UserListResponse is one page of the user listing
type UserListResponse struct {
	Items    []UserResponse `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// AuthResponse is returned from register and login
type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

// RefreshResponse carries a renewed access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// CreateProjectRequest creates a project
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateProjectRequest renames a project
type UpdateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// ProjectResponse is the public shape of a project
type ProjectResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateDiagramRequest creates a diagram under a project
type CreateDiagramRequest struct {
	ProjectID uuid.UUID       `json:"projectId" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Kind      string          `json:"kind"`
	ModelJSON json.RawMessage `json:"modelJson"`
}

// UpdateDiagramRequest replaces diagram fields; omitted fields keep their
// current value
type UpdateDiagramRequest struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	ModelJSON json.RawMessage `json:"modelJson"`
}

// DiagramResponse is the public shape of a diagram
type DiagramResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	ModelJSON json.RawMessage `json:"model_json,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DiagramVersionResponse is one row of the durable version history
type DiagramVersionResponse struct {
	ID        uuid.UUID `json:"id"`
	DiagramID uuid.UUID `json:"diagram_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateShareRequest creates a share link for a diagram
type CreateShareRequest struct {
	Permission string     `json:"permission"`
	TTLHours   int        `json:"ttlHours"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// ShareResponse is returned from share link creation
type ShareResponse struct {
	JTI        uuid.UUID `json:"jti"`
	Permission string    `json:"permission"`
	ExpiresAt  time.Time `json:"expiresAt"`
	URL        string    `json:"url"`
	Token      string    `json:"token"`
}

// ExportXMIRequest carries a model to convert to XMI
type ExportXMIRequest struct {
	Name  string          `json:"name"`
	Model json.RawMessage `json:"model" binding:"required"`
}

// GenerateSpringBootRequest carries a model to turn into a project archive
type GenerateSpringBootRequest struct {
	Model      json.RawMessage `json:"model" binding:"required"`
	GroupID    string          `json:"groupId"`
	ArtifactID string          `json:"artifactId"`
}
