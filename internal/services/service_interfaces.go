package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
)

var (
	ErrConfiguration         = errors.New("no active system prompt configured")
	ErrInsufficientCredits   = errors.New("insufficient credits")
	ErrGenerationFailed      = errors.New("story generation failed")
	ErrPersistenceFailed     = errors.New("failed to save or load data")
	ErrTooShortConversation  = errors.New("conversation too short")
	ErrSessionNotFound       = errors.New("session not found")
	ErrInvalidSessionState   = errors.New("operation not allowed in current session state")
	ErrStoryNotFound         = errors.New("story not found")
	ErrStoryVersionConflict  = errors.New("story was modified by another save")
	ErrInvalidStoryStatus    = errors.New("story can only be published or private")
	ErrGroupNotFound         = errors.New("family group not found")
	ErrNotGroupMember        = errors.New("not a member of this family group")
	ErrUnknownPriceSelection = errors.New("unknown credit pack or subscription tier")
)

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailed, op, err)
}

// ChatMessage is one role-tagged entry sent to the LLM.
type ChatMessage struct {
	Role    string
	Content string
}

type LLMGateway interface {
	Generate(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) (string, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error)
	ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error)
	UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, lastError string) error
	CompleteSession(ctx context.Context, sessionID uuid.UUID, previewContent string) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, message *models.Message) error
	ReadMessagesForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error)
	CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

type PromptStore interface {
	ListActivePrompts(ctx context.Context, promptType string) ([]models.SystemPrompt, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type CreditStore interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (CreditBalance, error)
	// ChargeSession marks the session charged and takes one credit from the first
	// available pool, atomically. charged is false when the session was already charged.
	ChargeSession(ctx context.Context, userID, sessionID uuid.UUID) (pool CreditPool, charged bool, err error)
	// RefundSession reverses a ChargeSession. It is a no-op if the session is not charged.
	RefundSession(ctx context.Context, userID, sessionID uuid.UUID) error
	AdjustCredits(ctx context.Context, userID uuid.UUID, pool CreditPool, delta int) (CreditBalance, error)
}

type AuditLogger interface {
	RecordFailure(ctx context.Context, attempt *models.FailedAttempt) error
}

// Publisher pushes realtime events to connected clients.
type Publisher interface {
	Publish(topic string, msg interface{})
}

type CloudStorageManager interface {
	UploadFile(ctx context.Context, bucketName, objectName string, content io.Reader) error
	DeleteFile(ctx context.Context, bucketName, objectName string) error
	ListFiles(ctx context.Context, bucketName, prefix string) ([]string, error)
}

func SessionTopic(sessionID uuid.UUID) string {
	return "session_" + sessionID.String()
}

func CreditTopic(userID uuid.UUID) string {
	return "credit_update_" + userID.String()
}
