package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedCheckout records a provider checkout/invoice id once its credits were applied.
type ProcessedCheckout struct {
	ID                uint      `gorm:"primaryKey"`
	ProviderSessionID string    `gorm:"uniqueIndex;not null"`
	UserID            uuid.UUID `gorm:"type:uuid;index;not null"`
	Kind              string    `gorm:"type:varchar(16);not null"`
	Credits           int
	CreatedAt         time.Time
}
