package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MinMessagesToFinish is the stored-message count below which Finish is rejected.
const MinMessagesToFinish = 4

const sessionLockStripes = 256

type InterviewConfig struct {
	PromptType         string
	ClosingInstruction string
	ChatMaxTokens      int
	ChatTemperature    float32
	StoryMaxTokens     int
	StoryTemperature   float32
}

type SessionEvent struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	LastError string               `json:"last_error,omitempty"`
	Message   *MessageView         `json:"message,omitempty"`
}

type MessageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CreditEvent struct {
	Type    string        `json:"type"`
	Balance CreditBalance `json:"balance"`
}

func NewMessageView(m *models.Message) *MessageView {
	return &MessageView{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

// InterviewService drives a chat session through active -> finishing -> completed,
// with failed as the excursion that Recover brings back to active.
type InterviewService struct {
	sessions  SessionStore
	messages  MessageStore
	users     UserStore
	credits   CreditStore
	prompts   *PromptService
	llm       LLMGateway
	audit     AuditLogger
	publisher Publisher
	cfg       InterviewConfig

	// striped by session id; serializes operations on one session
	locks [sessionLockStripes]sync.Mutex
}

func NewInterviewService(
	sessions SessionStore,
	messages MessageStore,
	users UserStore,
	credits CreditStore,
	prompts *PromptService,
	llm LLMGateway,
	audit AuditLogger,
	publisher Publisher,
	cfg InterviewConfig,
) *InterviewService {
	if cfg.PromptType == "" {
		cfg.PromptType = models.PromptTypeInterview
	}
	return &InterviewService{
		sessions:  sessions,
		messages:  messages,
		users:     users,
		credits:   credits,
		prompts:   prompts,
		llm:       llm,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *InterviewService) lockSession(sessionID uuid.UUID) func() {
	mu := &s.locks[lockStripe(sessionID)]
	mu.Lock()
	return mu.Unlock
}

func lockStripe(sessionID uuid.UUID) int {
	h := fnv.New32a()
	h.Write(sessionID[:])
	return int(h.Sum32() % sessionLockStripes)
}

// StartSession opens a new interview for storyID. It does not charge; the charge is
// taken on the first user reply.
func (s *InterviewService) StartSession(ctx context.Context, userID, storyID uuid.UUID) (*models.ChatSession, error) {
	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, persistenceErr("read credit balance", err)
	}
	if !CanStart(balance) {
		return nil, ErrInsufficientCredits
	}

	session := &models.ChatSession{
		ID:      uuid.New(),
		UserID:  userID,
		StoryID: storyID,
		Status:  models.SessionActive,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, persistenceErr("create session", err)
	}

	log.Info().Str("sessionID", session.ID.String()).Str("userID", userID.String()).Msg("Interview session started")
	s.publishSession("session_update", session, nil)
	return session, nil
}

// Greet stores the assistant's opening line. An empty text stores nothing.
func (s *InterviewService) Greet(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error) {
	if text == "" {
		return nil, nil
	}
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: greet in %s", ErrInvalidSessionState, session.Status)
	}

	greeting := s.newMessage(session, models.RoleAssistant, text)
	if err := s.messages.InsertMessage(ctx, greeting); err != nil {
		return nil, s.fail(ctx, session, "greet", persistenceErr("store greeting", err))
	}
	s.publishSession("message", session, greeting)
	return greeting, nil
}

// SubmitMessage appends the user's reply and the generated assistant reply.
func (s *InterviewService) SubmitMessage(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error) {
	const op = "submit_message"

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: submit message in %s", ErrInvalidSessionState, session.Status)
	}

	prompt, err := s.prompts.ActivePrompt(ctx, s.cfg.PromptType)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			log.Error().Str("promptType", s.cfg.PromptType).Msg("No active system prompt")
			return nil, err
		}
		return nil, s.fail(ctx, session, op, err)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("load user profile", err))
	}

	chargedNow, err := s.ensureCharged(ctx, session, user, op)
	if err != nil {
		return nil, err
	}

	userMsg := s.newMessage(session, models.RoleUser, text)
	if err := s.messages.InsertMessage(ctx, userMsg); err != nil {
		s.refund(ctx, session, chargedNow)
		return nil, s.fail(ctx, session, op, persistenceErr("store user message", err))
	}
	s.publishSession("message", session, userMsg)

	history, err := s.messages.ReadMessagesForSession(ctx, sessionID)
	if err != nil {
		s.refund(ctx, session, chargedNow)
		return nil, s.fail(ctx, session, op, persistenceErr("read conversation", err))
	}

	formatted := FormatMessages(prompt.Content, user.ProfileContext(), history, "")
	reply, err := s.llm.Generate(ctx, formatted, s.cfg.ChatMaxTokens, s.cfg.ChatTemperature)
	if err != nil {
		s.refund(ctx, session, chargedNow)
		return nil, s.fail(ctx, session, op, generationErr(err))
	}

	assistantMsg := s.newMessage(session, models.RoleAssistant, reply)
	if err := s.messages.InsertMessage(ctx, assistantMsg); err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("store assistant reply", err))
	}
	s.publishSession("message", session, assistantMsg)
	return assistantMsg, nil
}

// Finish generates the narrative draft from the conversation and completes the session.
func (s *InterviewService) Finish(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	const op = "finish"

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: finish in %s", ErrInvalidSessionState, session.Status)
	}

	count, err := s.messages.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("count messages", err))
	}
	if count < MinMessagesToFinish {
		return nil, fmt.Errorf("%w: %d of %d messages", ErrTooShortConversation, count, MinMessagesToFinish)
	}

	prompt, err := s.prompts.ActivePrompt(ctx, s.cfg.PromptType)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			log.Error().Str("promptType", s.cfg.PromptType).Msg("No active system prompt")
			return nil, err
		}
		return nil, s.fail(ctx, session, op, err)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("load user profile", err))
	}

	// a refunded submit can leave the session uncharged
	if _, err := s.ensureCharged(ctx, session, user, op); err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateSessionStatus(ctx, sessionID, models.SessionFinishing, ""); err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("mark session finishing", err))
	}
	session.Status = models.SessionFinishing
	s.publishSession("session_update", session, nil)

	history, err := s.messages.ReadMessagesForSession(ctx, sessionID)
	if err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("read conversation", err))
	}

	formatted := FormatMessages(prompt.Content, user.ProfileContext(), history, s.cfg.ClosingInstruction)
	narrative, err := s.llm.Generate(ctx, formatted, s.cfg.StoryMaxTokens, s.cfg.StoryTemperature)
	if err != nil {
		return nil, s.fail(ctx, session, op, generationErr(err))
	}

	if err := s.sessions.CompleteSession(ctx, sessionID, narrative); err != nil {
		return nil, s.fail(ctx, session, op, persistenceErr("store preview", err))
	}
	session.Status = models.SessionCompleted
	session.PreviewContent = narrative
	session.LastError = ""

	log.Info().Str("sessionID", sessionID.String()).Int("previewLength", len(narrative)).Msg("Interview session completed")
	s.publishSession("session_update", session, nil)
	return session, nil
}

// Recover returns a failed session to active, keeping its messages. Recovering an
// already active session is a no-op.
func (s *InterviewService) Recover(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionActive:
		return session, nil
	case models.SessionFailed:
	default:
		return nil, fmt.Errorf("%w: recover in %s", ErrInvalidSessionState, session.Status)
	}

	if err := s.sessions.UpdateSessionStatus(ctx, sessionID, models.SessionActive, ""); err != nil {
		return nil, persistenceErr("recover session", err)
	}
	session.Status = models.SessionActive
	session.LastError = ""

	log.Info().Str("sessionID", sessionID.String()).Msg("Interview session recovered")
	s.publishSession("session_update", session, nil)
	return session, nil
}

// GetSession returns the session and its messages in conversation order.
func (s *InterviewService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, []models.Message, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ReadMessagesForSession(ctx, sessionID)
	if err != nil {
		return nil, nil, persistenceErr("read conversation", err)
	}
	return session, messages, nil
}

func (s *InterviewService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	sessions, err := s.sessions.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, persistenceErr("list sessions", err)
	}
	return sessions, nil
}

func (s *InterviewService) ListFailedSessions(ctx context.Context) ([]models.ChatSession, error) {
	sessions, err := s.sessions.ListSessionsByStatus(ctx, models.SessionFailed)
	if err != nil {
		return nil, persistenceErr("list failed sessions", err)
	}
	return sessions, nil
}

func (s *InterviewService) loadSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, persistenceErr("load session", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *InterviewService) newMessage(session *models.ChatSession, role, content string) *models.Message {
	return &models.Message{
		SessionID: session.ID,
		Role:      role,
		Content:   content,
		UserID:    session.UserID,
		StoryID:   session.StoryID,
		CreatedAt: time.Now().UTC(),
	}
}

// fail moves the session to failed with a readable LastError and returns cause unchanged.
func (s *InterviewService) fail(ctx context.Context, session *models.ChatSession, op string, cause error) error {
	// the request context may already be done; the failure must still be recorded
	ctx = context.WithoutCancel(ctx)
	reason := FailureReason(cause)

	if err := s.sessions.UpdateSessionStatus(ctx, session.ID, models.SessionFailed, reason); err != nil {
		log.Error().Err(err).Str("sessionID", session.ID.String()).Msg("Failed to mark session as failed")
	} else {
		session.Status = models.SessionFailed
		session.LastError = reason
		s.publishSession("session_update", session, nil)
	}

	log.Error().Err(cause).Str("sessionID", session.ID.String()).Str("op", op).Msg("Interview step failed")

	if s.audit != nil {
		attempt := &models.FailedAttempt{
			UserID:    session.UserID,
			SessionID: session.ID,
			Operation: op,
			Reason:    cause.Error(),
		}
		if err := s.audit.RecordFailure(ctx, attempt); err != nil {
			log.Warn().Err(err).Str("sessionID", session.ID.String()).Msg("Failed to record failed attempt")
		}
	}
	return cause
}

// ensureCharged takes the session's credit unless it already holds one. It reports
// whether this call took it.
func (s *InterviewService) ensureCharged(ctx context.Context, session *models.ChatSession, user *models.User, op string) (bool, error) {
	if session.Charged {
		return false, nil
	}
	if !CanStart(CreditBalance{SubscriptionCredits: user.SubscriptionCredits, PurchasedCredits: user.PurchasedCredits}) {
		return false, ErrInsufficientCredits
	}
	pool, charged, err := s.credits.ChargeSession(ctx, session.UserID, session.ID)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return false, err
		}
		return false, s.fail(ctx, session, op, persistenceErr("charge credit", err))
	}
	if !charged {
		return false, nil
	}
	session.Charged = true
	creditChargesTotal.WithLabelValues(string(pool)).Inc()
	log.Info().Str("sessionID", session.ID.String()).Str("pool", string(pool)).Msg("Interview credit charged")
	s.publishCredits(ctx, session.UserID)
	return true, nil
}

func (s *InterviewService) refund(ctx context.Context, session *models.ChatSession, charged bool) {
	if !charged {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.credits.RefundSession(ctx, session.UserID, session.ID); err != nil {
		log.Error().Err(err).Str("sessionID", session.ID.String()).Msg("Failed to refund interview credit")
		return
	}
	session.Charged = false
	log.Info().Str("sessionID", session.ID.String()).Msg("Interview credit refunded")
	s.publishCredits(ctx, session.UserID)
}

func (s *InterviewService) publishSession(eventType string, session *models.ChatSession, msg *models.Message) {
	if s.publisher == nil {
		return
	}
	ev := SessionEvent{
		Type:      eventType,
		SessionID: session.ID.String(),
		Status:    session.Status,
		LastError: session.LastError,
	}
	if msg != nil {
		ev.Message = NewMessageView(msg)
	}
	s.publisher.Publish(SessionTopic(session.ID), ev)
}

func (s *InterviewService) publishCredits(ctx context.Context, userID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID.String()).Msg("Failed to read balance for credit update")
		return
	}
	s.publisher.Publish(CreditTopic(userID), CreditEvent{Type: "credit_update", Balance: balance})
}

func generationErr(err error) error {
	if errors.Is(err, ErrGenerationFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}

// FailureReason is the text shown to the user for a failed interview step.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrGenerationFailed):
		return "The interviewer could not produce a reply. Recover the session and try again."
	case errors.Is(err, ErrPersistenceFailed):
		return "Your conversation could not be saved. Recover the session and try again."
	}
	return err.Error()
}
