package services

import (
	"context"
	"errors"

	"memory_stitcher_go_backend/internal/models"

	"gorm.io/gorm"
)

var ErrPromptNotFound = errors.New("system prompt not found")

type DefaultPromptService struct {
	db *gorm.DB
}

func NewPromptServiceDB(db *gorm.DB) *DefaultPromptService {
	return &DefaultPromptService{db: db}
}

func (s *DefaultPromptService) ListActivePrompts(ctx context.Context, promptType string) ([]models.SystemPrompt, error) {
	var prompts []models.SystemPrompt
	err := s.db.WithContext(ctx).
		Where("type = ? AND active = ?", promptType, true).
		Order("id asc").
		Find(&prompts).Error
	return prompts, err
}

func (s *DefaultPromptService) ListPrompts(ctx context.Context) ([]models.SystemPrompt, error) {
	var prompts []models.SystemPrompt
	err := s.db.WithContext(ctx).Order("type asc, id asc").Find(&prompts).Error
	return prompts, err
}

func (s *DefaultPromptService) CreatePrompt(ctx context.Context, prompt *models.SystemPrompt) error {
	return s.db.WithContext(ctx).Create(prompt).Error
}

func (s *DefaultPromptService) SetPromptActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.SystemPrompt{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPromptNotFound
	}
	return nil
}
