package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionFinishing SessionStatus = "finishing"
	SessionPreview   SessionStatus = "preview"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatSession is one interview. Rows are never deleted so failed sessions can be recovered.
type ChatSession struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID     `gorm:"type:uuid;index;not null"`
	StoryID        uuid.UUID     `gorm:"type:uuid;index"`
	Status         SessionStatus `gorm:"type:varchar(16);index;not null"`
	LastError      string
	PreviewContent string
	Charged        bool   `gorm:"not null;default:false"`
	ChargedPool    string `gorm:"type:varchar(16)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Messages       []Message `gorm:"foreignKey:SessionID"`
}

// Message is append-only.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;index;not null"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"not null"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	StoryID   uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time `gorm:"index"`
}

// FailedAttempt is a best-effort audit row written when an interview step fails.
type FailedAttempt struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	SessionID uuid.UUID `gorm:"type:uuid;index"`
	Operation string
	Reason    string
	CreatedAt time.Time
}
