package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string   `envconfig:"PORT" default:"3000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool     `envconfig:"LOG_PRETTY" default:"false"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"memory_stitcher"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`

	JWTSecret string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	LLMProvider      string        `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel      string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GeminiAPIKey     string        `envconfig:"GOOGLE_AI_STUDIO_API_KEY"`
	GeminiModel      string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	LLMTimeout       time.Duration `envconfig:"LLM_TIMEOUT" default:"90s"`
	ChatMaxTokens    int           `envconfig:"CHAT_MAX_TOKENS" default:"600"`
	ChatTemperature  float32       `envconfig:"CHAT_TEMPERATURE" default:"0.7"`
	StoryMaxTokens   int           `envconfig:"STORY_MAX_TOKENS" default:"2500"`
	StoryTemperature float32       `envconfig:"STORY_TEMPERATURE" default:"0.8"`

	PromptType         string `envconfig:"PROMPT_TYPE" default:"interview"`
	ABPromptSelection  bool   `envconfig:"AB_PROMPT_SELECTION" default:"false"`
	GreetingMessage    string `envconfig:"GREETING_MESSAGE" default:"Hi! I'm here to help you capture a memory. Where would you like to begin?"`
	ClosingInstruction string `envconfig:"CLOSING_INSTRUCTION" default:"Using everything I've shared in this conversation, write my story as a warm first-person narrative. Give it a short title on the first line."`

	StripeSecretKey        string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret    string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeSuccessURL       string `envconfig:"STRIPE_SUCCESS_URL" default:"http://localhost:5173/credits/success?session_id={CHECKOUT_SESSION_ID}"`
	StripeCancelURL        string `envconfig:"STRIPE_CANCEL_URL" default:"http://localhost:5173/credits/cancel"`
	StripeIgnoreAPIVersion bool   `envconfig:"STRIPE_IGNORE_API_VERSION" default:"false"`

	GCSBucketName string `envconfig:"GCS_BUCKET_NAME"`

	SessionCheckInterval time.Duration `envconfig:"SESSION_CHECK_INTERVAL" default:"30s"`
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// MaskedDSN is DSN with the password replaced, for logging.
func (c *Config) MaskedDSN() string {
	return fmt.Sprintf("host=%s user=%s password=******** dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBName, c.DBPort, c.DBSSLMode)
}
