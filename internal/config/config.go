// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/companion/internal/agent"
	"github.com/ashureev/companion/internal/dispatch"
	"github.com/ashureev/companion/internal/geo"
	"github.com/ashureev/companion/internal/speech"
	"github.com/ashureev/companion/internal/transcode"
)

// Purpose selects which credentials Validate insists on.
type Purpose int

const (
	// Serve runs the bot behind Telegram and the web chat.
	Serve Purpose = iota
	// Console runs the local REPL; no transport credential is needed.
	Console
)

// Accepted enum values.
const (
	TelegramPoll      = "poll"
	TelegramWebhook   = "webhook"
	TranslateGoogle   = "google"
	TranslateLLM      = "llm"
	TranscoderFFmpeg  = "ffmpeg"
	TranscoderDocker  = "docker"
	StoreMemory       = "memory"
	StoreSQLite       = "sqlite"
	defaultQueueSize  = 1000
	defaultDBPath     = "./data/companion.db"
	defaultLogDir     = "./data/logs/conversations"
	defaultAIProvider = agent.ProviderOpenAI
)

// ConfigurationError reports a missing or malformed setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Config holds all application configuration.
type Config struct {
	Telegram        TelegramConfig
	AI              agent.Config
	OpenAIKey       string
	AnthropicKey    string
	Translate       TranslateConfig
	Speech          SpeechConfig
	Transcoder      TranscoderConfig
	Geocode         GeocodeConfig
	Port            string
	GRPCPort        string
	FrontendURL     string
	StoreDriver     string
	DBPath          string
	ConversationLog ConversationLogConfig
	Dispatch        dispatch.Config
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// TelegramConfig configures the Telegram transport.
type TelegramConfig struct {
	Token      string
	Mode       string
	WebhookURL string
	Debug      bool
}

// TranslateConfig selects the translation backend.
type TranslateConfig struct {
	Provider     string
	GoogleAPIKey string
}

// SpeechConfig configures voice recognition. It is disabled without an OpenAI key.
type SpeechConfig struct {
	Model string
}

// TranscoderConfig selects how voice notes are converted to wav.
type TranscoderConfig struct {
	Kind       string
	FFmpegPath string
	Image      string
}

// GeocodeConfig configures reverse geocoding.
type GeocodeConfig struct {
	URL       string
	UserAgent string
}

// ConversationLogConfig controls NDJSON transcript logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables and validates it for p.
func Load(p Purpose) (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(p); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse() (*Config, error) {
	var perr *ConfigurationError
	fail := func(key, reason string) {
		if perr == nil {
			perr = &ConfigurationError{Key: key, Reason: reason}
		}
	}

	aiDefaults := agent.DefaultConfig()
	provider := strings.ToLower(getEnv("AI_PROVIDER", defaultAIProvider))
	openAIKey := getEnv("OPENAI_API_KEY", "")
	anthropicKey := getEnv("ANTHROPIC_API_KEY", "")
	googleKey := getEnv("GOOGLE_TRANSLATE_API_KEY", "")

	aiKey := openAIKey
	model := agent.DefaultOpenAIModel
	if provider == agent.ProviderAnthropic {
		aiKey = anthropicKey
		model = agent.DefaultAnthropicModel
	}

	translateDefault := TranslateLLM
	if googleKey != "" {
		translateDefault = TranslateGoogle
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			Mode:       strings.ToLower(getEnv("TELEGRAM_MODE", TelegramPoll)),
			WebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
			Debug:      getEnvBool("TELEGRAM_DEBUG", false),
		},
		AI: agent.Config{
			Provider:    provider,
			APIKey:      aiKey,
			Model:       getEnv("AI_MODEL", model),
			BaseURL:     getEnv("AI_BASE_URL", ""),
			MaxTokens:   getEnvInt("AI_MAX_TOKENS", aiDefaults.MaxTokens, fail),
			Temperature: getEnvFloat("AI_TEMPERATURE", aiDefaults.Temperature, fail),
			Timeout:     getEnvDuration("AI_TIMEOUT", aiDefaults.Timeout, fail),
		},
		OpenAIKey:    openAIKey,
		AnthropicKey: anthropicKey,
		Translate: TranslateConfig{
			Provider:     strings.ToLower(getEnv("TRANSLATE_PROVIDER", translateDefault)),
			GoogleAPIKey: googleKey,
		},
		Speech: SpeechConfig{Model: getEnv("SPEECH_MODEL", speech.DefaultModel)},
		Transcoder: TranscoderConfig{
			Kind:       strings.ToLower(getEnv("TRANSCODER", TranscoderFFmpeg)),
			FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
			Image:      getEnv("TRANSCODER_IMAGE", transcode.DefaultImage),
		},
		Geocode: GeocodeConfig{
			URL:       getEnv("GEOCODE_URL", geo.DefaultURL),
			UserAgent: getEnv("GEOCODE_USER_AGENT", geo.DefaultUserAgent),
		},
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DBPath:      getEnv("DB_PATH", defaultDBPath),
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", defaultLogDir),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", defaultQueueSize, fail),
		},
		Dispatch: dispatch.Config{
			QueueSize:   getEnvInt("DISPATCH_QUEUE_SIZE", dispatch.DefaultQueueSize, fail),
			IdleTimeout: getEnvDuration("DISPATCH_IDLE_TIMEOUT", dispatch.DefaultIdleTimeout, fail),
		},
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second, fail),
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fail("LOG_LEVEL", err.Error())
	}
	cfg.LogLevel = level

	if perr != nil {
		return nil, perr
	}
	return cfg, nil
}

// Validate checks required settings. Console waives the Telegram token.
func (c *Config) Validate(p Purpose) error {
	if p == Serve {
		if c.Telegram.Token == "" {
			return &ConfigurationError{Key: "TELEGRAM_BOT_TOKEN", Reason: "required"}
		}
		switch c.Telegram.Mode {
		case TelegramPoll:
		case TelegramWebhook:
			if c.Telegram.WebhookURL == "" {
				return &ConfigurationError{Key: "TELEGRAM_WEBHOOK_URL", Reason: "required in webhook mode"}
			}
		default:
			return &ConfigurationError{Key: "TELEGRAM_MODE", Reason: fmt.Sprintf("unknown mode %q", c.Telegram.Mode)}
		}
	}

	switch c.AI.Provider {
	case agent.ProviderOpenAI:
		if c.AI.APIKey == "" {
			return &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "required for the openai provider"}
		}
	case agent.ProviderAnthropic:
		if c.AI.APIKey == "" {
			return &ConfigurationError{Key: "ANTHROPIC_API_KEY", Reason: "required for the anthropic provider"}
		}
	default:
		return &ConfigurationError{Key: "AI_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.AI.Provider)}
	}
	if c.AI.MaxTokens <= 0 {
		return &ConfigurationError{Key: "AI_MAX_TOKENS", Reason: "must be > 0"}
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return &ConfigurationError{Key: "AI_TEMPERATURE", Reason: "must be within [0, 2]"}
	}

	switch c.Translate.Provider {
	case TranslateLLM:
	case TranslateGoogle:
		if c.Translate.GoogleAPIKey == "" {
			return &ConfigurationError{Key: "GOOGLE_TRANSLATE_API_KEY", Reason: "required for the google translate provider"}
		}
	default:
		return &ConfigurationError{Key: "TRANSLATE_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Translate.Provider)}
	}

	switch c.Transcoder.Kind {
	case TranscoderFFmpeg, TranscoderDocker:
	default:
		return &ConfigurationError{Key: "TRANSCODER", Reason: fmt.Sprintf("unknown transcoder %q", c.Transcoder.Kind)}
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			return &ConfigurationError{Key: "DB_PATH", Reason: "cannot be empty with the sqlite store"}
		}
	default:
		return &ConfigurationError{Key: "STORE_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.StoreDriver)}
	}

	if c.Port == "" {
		return &ConfigurationError{Key: "PORT", Reason: "cannot be empty"}
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return &ConfigurationError{Key: "CONVERSATION_LOG_DIR", Reason: "cannot be empty"}
	}
	if c.ConversationLog.QueueSize <= 0 {
		return &ConfigurationError{Key: "CONVERSATION_LOG_QUEUE_SIZE", Reason: "must be > 0"}
	}
	if c.Dispatch.QueueSize <= 0 {
		return &ConfigurationError{Key: "DISPATCH_QUEUE_SIZE", Reason: "must be > 0"}
	}
	return nil
}

// SpeechEnabled reports whether voice recognition can run: Whisper needs an OpenAI key.
func (c *Config) SpeechEnabled() bool {
	return c.OpenAIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int, fail func(key, reason string)) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		fail(key, fmt.Sprintf("%q is not an integer", value))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, fail func(key, reason string)) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		fail(key, fmt.Sprintf("%q is not a number", value))
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration, fail func(key, reason string)) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		fail(key, fmt.Sprintf("%q is not a positive duration", value))
		return fallback
	}
	return d
}
