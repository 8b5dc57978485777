package api

import (
	"context"

	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"
)

type MockInterviews struct {
	mock.Mock
}

func (m *MockInterviews) StartSession(ctx context.Context, userID, storyID uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, userID, storyID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockInterviews) Greet(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error) {
	args := m.Called(ctx, userID, sessionID, text)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockInterviews) SubmitMessage(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error) {
	args := m.Called(ctx, userID, sessionID, text)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockInterviews) Finish(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, userID, sessionID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockInterviews) Recover(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, userID, sessionID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *MockInterviews) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, []models.Message, error) {
	args := m.Called(ctx, userID, sessionID)
	s, _ := args.Get(0).(*models.ChatSession)
	msgs, _ := args.Get(1).([]models.Message)
	return s, msgs, args.Error(2)
}

func (m *MockInterviews) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]models.ChatSession)
	return s, args.Error(1)
}

func (m *MockInterviews) ListFailedSessions(ctx context.Context) ([]models.ChatSession, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]models.ChatSession)
	return s, args.Error(1)
}

type MockStories struct {
	mock.Mock
}

func (m *MockStories) CreateDraft(ctx context.Context, authorID uuid.UUID, title string) (*models.Story, error) {
	args := m.Called(ctx, authorID, title)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *MockStories) DiscardDraft(ctx context.Context, authorID, storyID uuid.UUID) error {
	args := m.Called(ctx, authorID, storyID)
	return args.Error(0)
}

func (m *MockStories) ListStories(ctx context.Context, authorID uuid.UUID) ([]models.Story, error) {
	args := m.Called(ctx, authorID)
	s, _ := args.Get(0).([]models.Story)
	return s, args.Error(1)
}

func (m *MockStories) GetStory(ctx context.Context, viewerID, storyID uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, viewerID, storyID)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *MockStories) Autosave(ctx context.Context, authorID, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error) {
	args := m.Called(ctx, authorID, storyID, title, content, expectedVersion)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *MockStories) AdoptPreview(ctx context.Context, userID, sessionID uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, userID, sessionID)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *MockStories) Publish(ctx context.Context, authorID, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, authorID, storyID, status, groupID)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *MockStories) ListGroupStories(ctx context.Context, viewerID, groupID uuid.UUID) ([]models.Story, error) {
	args := m.Called(ctx, viewerID, groupID)
	s, _ := args.Get(0).([]models.Story)
	return s, args.Error(1)
}

func (m *MockStories) ListArchivedStories(ctx context.Context, authorID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, authorID)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockStories) ExportPDF(ctx context.Context, viewerID, storyID uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, viewerID, storyID)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) CreateCreditCheckout(userID, packKey string) (*stripe.CheckoutSession, error) {
	args := m.Called(userID, packKey)
	s, _ := args.Get(0).(*stripe.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockCheckout) CreateSubscriptionCheckout(userID, tierKey string) (*stripe.CheckoutSession, error) {
	args := m.Called(userID, tierKey)
	s, _ := args.Get(0).(*stripe.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockCheckout) HandleWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	args := m.Called(payload, signatureHeader)
	e, _ := args.Get(0).(stripe.Event)
	return e, args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) ProcessEvent(ctx context.Context, event stripe.Event) error {
	return m.Called(ctx, event).Error(0)
}

type MockCredits struct {
	mock.Mock
}

func (m *MockCredits) GetBalance(ctx context.Context, userID uuid.UUID) (services.CreditBalance, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(services.CreditBalance), args.Error(1)
}

func (m *MockCredits) AdjustCredits(ctx context.Context, userID uuid.UUID, pool services.CreditPool, delta int) (services.CreditBalance, error) {
	args := m.Called(ctx, userID, pool, delta)
	return args.Get(0).(services.CreditBalance), args.Error(1)
}
