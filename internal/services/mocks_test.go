package services_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLLMGateway struct {
	mock.Mock
}

func (m *MockLLMGateway) Generate(ctx context.Context, messages []services.ChatMessage, maxTokens int, temperature float32) (string, error) {
	args := m.Called(ctx, messages, maxTokens, temperature)
	return args.String(0), args.Error(1)
}

type MockCloudStorage struct {
	mock.Mock
}

func (m *MockCloudStorage) UploadFile(ctx context.Context, bucketName, objectName string, content io.Reader) error {
	args := m.Called(ctx, bucketName, objectName, content)
	return args.Error(0)
}

func (m *MockCloudStorage) DeleteFile(ctx context.Context, bucketName, objectName string) error {
	args := m.Called(ctx, bucketName, objectName)
	return args.Error(0)
}

func (m *MockCloudStorage) ListFiles(ctx context.Context, bucketName, prefix string) ([]string, error) {
	args := m.Called(ctx, bucketName, prefix)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

// memStore is an in-memory stand-in for the postgres-backed stores.
type memStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]models.ChatSession
	messages  map[uuid.UUID][]models.Message
	users     map[uuid.UUID]models.User
	prompts   []models.SystemPrompt
	failures  []models.FailedAttempt
	nextMsgID uint

	insertErr error
	chargeErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]models.ChatSession),
		messages: make(map[uuid.UUID][]models.Message),
		users:    make(map[uuid.UUID]models.User),
	}
}

func (s *memStore) addUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) balance(userID uuid.UUID) services.CreditBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	return services.CreditBalance{SubscriptionCredits: u.SubscriptionCredits, PurchasedCredits: u.PurchasedCredits}
}

func (s *memStore) session(id uuid.UUID) models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *memStore) CreateSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	session.CreatedAt, session.UpdatedAt = now, now
	s.sessions[session.ID] = *session
	return nil
}

func (s *memStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	return &session, nil
}

func (s *memStore) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	return s.filterSessions(func(cs models.ChatSession) bool { return cs.UserID == userID }), nil
}

func (s *memStore) ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error) {
	return s.filterSessions(func(cs models.ChatSession) bool { return cs.Status == status }), nil
}

func (s *memStore) filterSessions(keep func(models.ChatSession) bool) []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatSession
	for _, cs := range s.sessions {
		if keep(cs) {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memStore) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return services.ErrSessionNotFound
	}
	session.Status = status
	session.LastError = lastError
	s.sessions[sessionID] = session
	return nil
}

func (s *memStore) CompleteSession(ctx context.Context, sessionID uuid.UUID, previewContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return services.ErrSessionNotFound
	}
	session.Status = models.SessionCompleted
	session.PreviewContent = previewContent
	session.LastError = ""
	s.sessions[sessionID] = session
	return nil
}

func (s *memStore) InsertMessage(ctx context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.nextMsgID++
	message.ID = s.nextMsgID
	s.messages[message.SessionID] = append(s.messages[message.SessionID], *message)
	return nil
}

func (s *memStore) ReadMessagesForSession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *memStore) CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.messages[sessionID])), nil
}

func (s *memStore) ListActivePrompts(ctx context.Context, promptType string) ([]models.SystemPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SystemPrompt
	for _, p := range s.prompts {
		if p.Active && p.Type == promptType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) GetBalance(ctx context.Context, userID uuid.UUID) (services.CreditBalance, error) {
	return s.balance(userID), nil
}

func (s *memStore) ChargeSession(ctx context.Context, userID, sessionID uuid.UUID) (services.CreditPool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chargeErr != nil {
		return "", false, s.chargeErr
	}
	session := s.sessions[sessionID]
	if session.Charged {
		return "", false, nil
	}
	u := s.users[userID]
	b, pool, err := services.DecrementFirstAvailable(services.CreditBalance{
		SubscriptionCredits: u.SubscriptionCredits,
		PurchasedCredits:    u.PurchasedCredits,
	})
	if err != nil {
		return "", false, err
	}
	u.SubscriptionCredits, u.PurchasedCredits = b.SubscriptionCredits, b.PurchasedCredits
	s.users[userID] = u
	session.Charged = true
	session.ChargedPool = string(pool)
	s.sessions[sessionID] = session
	return pool, true, nil
}

func (s *memStore) RefundSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.sessions[sessionID]
	if !session.Charged {
		return nil
	}
	u := s.users[userID]
	switch services.CreditPool(session.ChargedPool) {
	case services.PoolSubscription:
		u.SubscriptionCredits++
	case services.PoolPurchased:
		u.PurchasedCredits++
	}
	s.users[userID] = u
	session.Charged = false
	session.ChargedPool = ""
	s.sessions[sessionID] = session
	return nil
}

func (s *memStore) AdjustCredits(ctx context.Context, userID uuid.UUID, pool services.CreditPool, delta int) (services.CreditBalance, error) {
	s.mu.Lock()
	u := s.users[userID]
	switch pool {
	case services.PoolSubscription:
		u.SubscriptionCredits += delta
	case services.PoolPurchased:
		u.PurchasedCredits += delta
	default:
		s.mu.Unlock()
		return services.CreditBalance{}, errors.New("unknown pool")
	}
	s.users[userID] = u
	s.mu.Unlock()
	return s.balance(userID), nil
}

func (s *memStore) RecordFailure(ctx context.Context, attempt *models.FailedAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, *attempt)
	return nil
}

type publishedEvent struct {
	Topic string
	Msg   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic string, msg interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Msg: msg})
}

func (p *recordingPublisher) sessionStatuses(topic string) []models.SessionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.SessionStatus
	for _, e := range p.events {
		if ev, ok := e.Msg.(services.SessionEvent); ok && e.Topic == topic && ev.Type == "session_update" {
			out = append(out, ev.Status)
		}
	}
	return out
}
