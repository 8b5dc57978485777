package models

import (
	"time"

	"github.com/google/uuid"
)

type StoryStatus string

const (
	StoryDraft     StoryStatus = "draft"
	StoryPublished StoryStatus = "published"
	StoryPrivate   StoryStatus = "private"
)

type Story struct {
	ID        uuid.UUID   `gorm:"type:uuid;primary_key"`
	Title     string
	Content   string
	AuthorID  uuid.UUID   `gorm:"type:uuid;index;not null"`
	GroupID   *uuid.UUID  `gorm:"type:uuid;index"`
	Status    StoryStatus `gorm:"type:varchar(16);not null;default:'draft'"`
	Version   int         `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FamilyGroup struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"not null"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedAt time.Time
	Members   []FamilyMember `gorm:"foreignKey:GroupID"`
}

type FamilyMember struct {
	GroupID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role      string    `gorm:"type:varchar(16);not null;default:'member'"`
	CreatedAt time.Time
}
