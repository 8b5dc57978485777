package models

import "gorm.io/gorm"

const PromptTypeInterview = "interview"

type SystemPrompt struct {
	gorm.Model
	Type    string `gorm:"index;not null"`
	Active  bool   `gorm:"index;not null;default:false"`
	Content string `gorm:"not null"`
	ABGroup *string
}
