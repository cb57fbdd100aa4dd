// Package models contains the GORM database models shared by the API
// handlers and stores.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an ID if one is not set. Hooks keep ID generation
// portable across postgres (production) and sqlite (tests).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Project groups diagrams under an owner
type Project struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name      string     `gorm:"not null"`
	OwnerID   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for Project
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate assigns an ID if one is not set
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Diagram is the durable diagram document
type Diagram struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProjectID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Name      string         `gorm:"not null"`
	Kind      string         `gorm:"not null;default:class"`
	ModelJSON datatypes.JSON `gorm:"column:model_json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for Diagram
func (Diagram) TableName() string {
	return "diagrams"
}

// BeforeCreate assigns an ID if one is not set
func (d *Diagram) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DiagramVersion is one row of the append-only durable version history,
// written on every diagram update. It is unrelated to the in-memory room
// version counter used by the realtime channel.
type DiagramVersion struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	DiagramID uuid.UUID      `gorm:"type:uuid;index;not null"`
	ModelJSON datatypes.JSON `gorm:"column:model_json"`
	CreatedAt time.Time
}

// TableName returns the table name for DiagramVersion
func (DiagramVersion) TableName() string {
	return "diagram_versions"
}

// BeforeCreate assigns an ID if one is not set
func (v *DiagramVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// ShareLink is a revocable share-token grant for a diagram
type ShareLink struct {
	JTI        uuid.UUID  `gorm:"type:uuid;primaryKey;column:jti"`
	DiagramID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid"`
	Permission string     `gorm:"not null;default:edit"`
	ExpiresAt  time.Time  `gorm:"not null"`
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// TableName returns the table name for ShareLink
func (ShareLink) TableName() string {
	return "share_links"
}

// BeforeCreate assigns a JTI if one is not set
func (s *ShareLink) BeforeCreate(tx *gorm.DB) error {
	if s.JTI == uuid.Nil {
		s.JTI = uuid.New()
	}
	return nil
}
