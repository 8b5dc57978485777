package services

import (
	"context"
	"errors"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatServiceDB persists interview sessions and their messages.
type ChatServiceDB interface {
	SessionStore
	MessageStore
	AuditLogger
}

// DefaultChatService implements ChatServiceDB
type DefaultChatService struct {
	db *gorm.DB
}

// NewChatServiceDB creates a new DefaultChatService
func NewChatServiceDB(db *gorm.DB) ChatServiceDB {
	return &DefaultChatService{db: db}
}

func (s *DefaultChatService) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *DefaultChatService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *DefaultChatService) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&sessions)
	if result.Error != nil {
		return nil, result.Error
	}
	return sessions, nil
}

func (s *DefaultChatService) ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	result := s.db.WithContext(ctx).Where("status = ?", status).Order("updated_at desc").Find(&sessions)
	if result.Error != nil {
		return nil, result.Error
	}
	return sessions, nil
}

func (s *DefaultChatService) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, lastError string) error {
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *DefaultChatService) CompleteSession(ctx context.Context, sessionID uuid.UUID, previewContent string) error {
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":          models.SessionCompleted,
			"preview_content": previewContent,
			"last_error":      "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InsertMessage appends a message. Messages are never updated afterwards.
func (s *DefaultChatService) InsertMessage(ctx context.Context, message *models.Message) error {
	return s.db.WithContext(ctx).Create(message).Error
}

// ReadMessagesForSession retrieves all messages for a session in conversation order
func (s *DefaultChatService) ReadMessagesForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	result := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at asc, id asc").Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}

func (s *DefaultChatService) CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

// RecordFailure writes an audit row for a failed interview step.
func (s *DefaultChatService) RecordFailure(ctx context.Context, attempt *models.FailedAttempt) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}
