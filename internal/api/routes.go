package api

import (
	"context"

	"memory_stitcher_go_backend/internal/auth"
	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

type Interviews interface {
	StartSession(ctx context.Context, userID, storyID uuid.UUID) (*models.ChatSession, error)
	Greet(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error)
	SubmitMessage(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error)
	Finish(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error)
	Recover(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, []models.Message, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error)
	ListFailedSessions(ctx context.Context) ([]models.ChatSession, error)
}

type Stories interface {
	CreateDraft(ctx context.Context, authorID uuid.UUID, title string) (*models.Story, error)
	DiscardDraft(ctx context.Context, authorID, storyID uuid.UUID) error
	ListStories(ctx context.Context, authorID uuid.UUID) ([]models.Story, error)
	GetStory(ctx context.Context, viewerID, storyID uuid.UUID) (*models.Story, error)
	Autosave(ctx context.Context, authorID, storyID uuid.UUID, title, content string, expectedVersion int) (*models.Story, error)
	AdoptPreview(ctx context.Context, userID, sessionID uuid.UUID) (*models.Story, error)
	Publish(ctx context.Context, authorID, storyID uuid.UUID, status models.StoryStatus, groupID *uuid.UUID) (*models.Story, error)
	ListGroupStories(ctx context.Context, viewerID, groupID uuid.UUID) ([]models.Story, error)
	ExportPDF(ctx context.Context, viewerID, storyID uuid.UUID) ([]byte, error)
	ListArchivedStories(ctx context.Context, authorID uuid.UUID) ([]string, error)
}

type Groups interface {
	CreateGroup(ctx context.Context, ownerID uuid.UUID, name string) (*models.FamilyGroup, error)
	AddMember(ctx context.Context, ownerID, groupID, userID uuid.UUID) error
	ListGroups(ctx context.Context, userID uuid.UUID) ([]models.FamilyGroup, error)
}

type Credits interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (services.CreditBalance, error)
	AdjustCredits(ctx context.Context, userID uuid.UUID, pool services.CreditPool, delta int) (services.CreditBalance, error)
}

type Checkout interface {
	CreateCreditCheckout(userID, packKey string) (*stripe.CheckoutSession, error)
	CreateSubscriptionCheckout(userID, tierKey string) (*stripe.CheckoutSession, error)
	HandleWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

type Payments interface {
	ProcessEvent(ctx context.Context, event stripe.Event) error
}

type Prompts interface {
	ListPrompts(ctx context.Context) ([]models.SystemPrompt, error)
	CreatePrompt(ctx context.Context, prompt *models.SystemPrompt) error
	SetPromptActive(ctx context.Context, id uint, active bool) error
}

type Profiles interface {
	auth.UserProvisioner
	UpdateProfile(ctx context.Context, userID uuid.UUID, update services.ProfileUpdate) (*models.User, error)
}

type Handlers struct {
	Interviews Interviews
	Stories    Stories
	Groups     Groups
	Credits    Credits
	Checkout   Checkout // nil when Stripe is not configured
	Payments   Payments
	Prompts    Prompts
	Profiles   Profiles
	Greeting   string
	JWTSecret  string
}

func SetupRoutes(r *gin.Engine, h Handlers) {
	authMiddleware := auth.AuthMiddleware(h.Profiles, h.JWTSecret)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler)
		if h.Checkout != nil {
			api.POST("/stripe/webhook", stripeWebhookHandler(h.Checkout, h.Payments))
		}
	}

	user := api.Group("", authMiddleware)
	{
		user.GET("/profile", getProfileHandler())
		user.PATCH("/profile", updateProfileHandler(h.Profiles))

		user.POST("/interviews", startInterviewHandler(h.Interviews, h.Stories, h.Greeting))
		user.GET("/interviews", listInterviewsHandler(h.Interviews))
		user.GET("/interviews/:id", getInterviewHandler(h.Interviews))
		user.POST("/interviews/:id/messages", submitMessageHandler(h.Interviews))
		user.POST("/interviews/:id/finish", finishInterviewHandler(h.Interviews))
		user.POST("/interviews/:id/recover", recoverInterviewHandler(h.Interviews))
		user.POST("/interviews/:id/adopt", adoptPreviewHandler(h.Stories))

		user.GET("/credits", getCreditsHandler(h.Credits))
		if h.Checkout != nil {
			user.POST("/credits/checkout", creditCheckoutHandler(h.Checkout))
			user.POST("/subscriptions/checkout", subscriptionCheckoutHandler(h.Checkout))
		}

		user.POST("/stories", createStoryHandler(h.Stories))
		user.GET("/stories", listStoriesHandler(h.Stories))
		user.GET("/stories/:id", getStoryHandler(h.Stories))
		user.PUT("/stories/:id", autosaveStoryHandler(h.Stories))
		user.POST("/stories/:id/publish", publishStoryHandler(h.Stories))
		user.GET("/stories/:id/pdf", exportStoryPDFHandler(h.Stories))

		user.POST("/groups", createGroupHandler(h.Groups))
		user.GET("/groups", listGroupsHandler(h.Groups))
		user.POST("/groups/:id/members", addGroupMemberHandler(h.Groups))
		user.GET("/groups/:id/stories", listGroupStoriesHandler(h.Stories))
	}

	admin := api.Group("/admin", authMiddleware, auth.AdminMiddleware())
	{
		admin.GET("/prompts", listPromptsHandler(h.Prompts))
		admin.POST("/prompts", createPromptHandler(h.Prompts))
		admin.PATCH("/prompts/:id", setPromptActiveHandler(h.Prompts))
		admin.POST("/users/:id/credits", grantCreditsHandler(h.Credits))
		admin.GET("/sessions/failed", listFailedSessionsHandler(h.Interviews))
		admin.GET("/users/:id/archive", listArchivedStoriesHandler(h.Stories))
	}
}
