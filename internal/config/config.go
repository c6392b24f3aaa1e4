package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken  string  `yaml:"telegram_token"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids"`
	Mode           string  `yaml:"mode"` // "polling" or "webhook"
	WebhookSecret  string  `yaml:"webhook_secret"`
	WebhookURL     string  `yaml:"webhook_url"`

	DatabaseURL string `yaml:"database_url"`
	AudioDir    string `yaml:"audio_dir"`
	Timezone    string `yaml:"timezone"`

	SpeechProvider     string `yaml:"speech_provider"` // "openai", "huggingface" or "gemini"
	OpenAIAPIKey       string `yaml:"openai_api_key"`
	OpenAIModel        string `yaml:"openai_model"`
	HuggingFaceToken   string `yaml:"huggingface_token"`
	HuggingFaceModel   string `yaml:"huggingface_model"`
	GeminiAPIKey       string `yaml:"gemini_api_key"`
	GeminiModel        string `yaml:"gemini_model"`
	TranscribeAttempts int    `yaml:"transcribe_attempts"`

	NotionTitleProperty string `yaml:"notion_title_property"`

	RedisURL string `yaml:"redis_url"`

	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`

	HTTPPort   string `yaml:"http_port"`
	JWTSecret  string `yaml:"jwt_secret"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	SendPerSec int    `yaml:"send_per_second"`

	SummaryInterval time.Duration `yaml:"summary_interval"`
}

var AppConfig Config

// LoadConfig fills AppConfig from defaults, then the optional YAML file at path,
// then environment variables (including a .env file if present).
func LoadConfig(path string) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	cfg := defaults()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return err
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

func defaults() Config {
	return Config{
		Mode:                "polling",
		DatabaseURL:         "verbal_diary.db",
		AudioDir:            "voice_messages",
		Timezone:            "Europe/Berlin",
		SpeechProvider:      "openai",
		OpenAIModel:         "whisper-1",
		HuggingFaceModel:    "openai/whisper-large-v3",
		GeminiModel:         "gemini-1.5-flash-latest",
		TranscribeAttempts:  6,
		NotionTitleProperty: "Title",
		S3Prefix:            "voice_messages",
		HTTPPort:            "8080",
		LogLevel:            "info",
		LogFormat:           "text",
		SendPerSec:          25,
		SummaryInterval:     12 * time.Hour,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("config file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.AllowedChatIDs = getEnvAsInt64s("ALLOWED_CHAT_IDS", cfg.AllowedChatIDs)
	cfg.Mode = getEnv("BOT_MODE", cfg.Mode)
	cfg.WebhookSecret = getEnv("WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.AudioDir = getEnv("AUDIO_DIR", cfg.AudioDir)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.SpeechProvider = getEnv("SPEECH_PROVIDER", cfg.SpeechProvider)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.HuggingFaceToken = getEnv("HUGGINGFACE_TOKEN", cfg.HuggingFaceToken)
	cfg.HuggingFaceModel = getEnv("HUGGINGFACE_MODEL", cfg.HuggingFaceModel)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.TranscribeAttempts = getEnvAsInt("TRANSCRIBE_ATTEMPTS", cfg.TranscribeAttempts)
	cfg.NotionTitleProperty = getEnv("NOTION_TITLE_PROPERTY", cfg.NotionTitleProperty)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.SendPerSec = getEnvAsInt("SEND_PER_SECOND", cfg.SendPerSec)
	cfg.SummaryInterval = getEnvAsDuration("SUMMARY_INTERVAL", cfg.SummaryInterval)
}

func (c *Config) validate() error {
	switch c.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("unknown bot mode %q", c.Mode)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// ValidateServing checks the keys needed to run the bot. Maintenance commands
// such as -dump and -admin-token skip it.
func (c *Config) ValidateServing() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN environment variable is required")
	}
	switch c.SpeechProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for speech provider openai")
		}
	case "huggingface":
		if c.HuggingFaceToken == "" {
			return errors.New("HUGGINGFACE_TOKEN is required for speech provider huggingface")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for speech provider gemini")
		}
	default:
		return fmt.Errorf("unknown speech provider %q", c.SpeechProvider)
	}
	if c.Mode == "webhook" && c.WebhookURL == "" {
		return errors.New("WEBHOOK_URL is required in webhook mode")
	}
	return nil
}

// Location returns the reference timezone for message dates and note headings.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64s(key string, defaultValue []int64) []int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var ids []int64
	for _, part := range strings.Split(valueStr, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			slog.Warn("ignoring invalid chat id", "key", key, "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
