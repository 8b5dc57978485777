package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"memory_stitcher_go_backend/cmd/api/config"
	"memory_stitcher_go_backend/internal/api"
	"memory_stitcher_go_backend/internal/auth"
	"memory_stitcher_go_backend/internal/broker"
	"memory_stitcher_go_backend/internal/database"
	"memory_stitcher_go_backend/internal/services"
	"memory_stitcher_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg)

	ctx := context.Background()

	log.Info().Str("dsn", cfg.MaskedDSN()).Msg("Connecting to database")
	db, err := database.InitDB(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	llm, closeLLM, err := newLLMGateway(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLMProvider).Msg("Failed to create LLM client")
	}
	defer closeLLM()

	var selector services.PromptSelector = services.FirstPromptSelector{}
	if cfg.ABPromptSelection {
		selector = services.NewABPromptSelector(rand.NewSource(time.Now().UnixNano()))
	}

	messageBroker := broker.NewBroker(16)

	// Initialize internal services
	chatServiceDB := services.NewChatServiceDB(db)
	creditServiceDB := services.NewCreditServiceDB(db)
	promptServiceDB := services.NewPromptServiceDB(db)
	storyServiceDB := services.NewStoryServiceDB(db)
	userService := services.NewUserService(db)

	interviewService := services.NewInterviewService(
		chatServiceDB,
		chatServiceDB,
		userService,
		creditServiceDB,
		services.NewPromptService(promptServiceDB, selector),
		llm,
		chatServiceDB,
		messageBroker,
		services.InterviewConfig{
			PromptType:         cfg.PromptType,
			ClosingInstruction: cfg.ClosingInstruction,
			ChatMaxTokens:      cfg.ChatMaxTokens,
			ChatTemperature:    cfg.ChatTemperature,
			StoryMaxTokens:     cfg.StoryMaxTokens,
			StoryTemperature:   cfg.StoryTemperature,
		},
	)

	var storage services.CloudStorageManager
	if cfg.GCSBucketName != "" {
		gcsService, err := services.NewGCSService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS service")
		}
		defer gcsService.Close()
		storage = gcsService
	} else {
		log.Info().Msg("GCS_BUCKET_NAME not set, story archiving disabled")
	}

	storyService := services.NewStoryService(storyServiceDB, storyServiceDB, chatServiceDB, storage, cfg.GCSBucketName, messageBroker)
	groupService := services.NewGroupService(storyServiceDB, userService)
	paymentService := services.NewPaymentService(services.NewPurchaseLedgerDB(db), creditServiceDB, messageBroker)

	var checkout api.Checkout
	if cfg.StripeSecretKey != "" {
		checkout = services.NewStripeService(
			cfg.StripeSecretKey,
			cfg.StripeWebhookSecret,
			cfg.StripeSuccessURL,
			cfg.StripeCancelURL,
			cfg.StripeIgnoreAPIVersion,
		)
	} else {
		log.Info().Msg("STRIPE_SECRET_KEY not set, payments disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	wsHandler := wsocket.NewHandler(interviewService, messageBroker, upgrader, cfg.SessionCheckInterval)

	api.SetupRoutes(r, api.Handlers{
		Interviews: interviewService,
		Stories:    storyService,
		Groups:     groupService,
		Credits:    creditServiceDB,
		Checkout:   checkout,
		Payments:   paymentService,
		Prompts:    promptServiceDB,
		Profiles:   userService,
		Greeting:   cfg.GreetingMessage,
		JWTSecret:  cfg.JWTSecret,
	})
	auth.SetupRoutes(r, userService, cfg.JWTSecret)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", auth.AuthMiddleware(userService, cfg.JWTSecret), func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		wsHandler.HandleWebSocket(c.Writer, c.Request, user)
	})

	log.Info().Str("port", cfg.Port).Str("llmProvider", cfg.LLMProvider).Msg("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newLLMGateway(ctx context.Context, cfg *config.Config) (services.LLMGateway, func(), error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		gateway, err := services.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTimeout)
		if err != nil {
			return nil, nil, err
		}
		return gateway, func() { gateway.Close() }, nil
	default:
		return services.NewOpenAIGateway(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.LLMTimeout), func() {}, nil
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
