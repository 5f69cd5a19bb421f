package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PodCatch server.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Transcription TranscriptionConfig
	Summary       SummaryConfig
	Limits        LimitsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// TranscriptionConfig configures the speech-to-text provider and the
// resilience wrapper around it (redirect resolution, retry, size guard).
type TranscriptionConfig struct {
	Provider        string
	APIKey          string
	BaseURL         string
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxRedirectHops int
	HopTimeout      time.Duration
	MaxPayloadBytes int64
}

type SummaryConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // empty means the OpenAI default
}

type LimitsConfig struct {
	RequestsPerMinute int
	SummariesPerDay   int
}

var validTranscriptionProviders = map[string]bool{
	"assemblyai": true,
	"mock":       true,
}

var validSummaryProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PODCATCH_PORT", 8080),
			Env:  envString("PODCATCH_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Transcription: TranscriptionConfig{
			Provider:        envString("TRANSCRIPTION_PROVIDER", "assemblyai"),
			APIKey:          os.Getenv("ASSEMBLYAI_API_KEY"),
			BaseURL:         envString("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
			PollInterval:    envDuration("TRANSCRIPTION_POLL_INTERVAL", 5*time.Second),
			PollTimeout:     envDuration("TRANSCRIPTION_POLL_TIMEOUT", 15*time.Minute),
			MaxRetries:      envInt("TRANSCRIPTION_MAX_RETRIES", 3),
			RetryBaseDelay:  envDuration("TRANSCRIPTION_RETRY_BASE_DELAY", 1*time.Second),
			MaxRedirectHops: envInt("TRANSCRIPTION_MAX_REDIRECT_HOPS", 5),
			HopTimeout:      envDuration("TRANSCRIPTION_HOP_TIMEOUT", 3*time.Second),
			MaxPayloadBytes: envInt64("TRANSCRIPTION_MAX_PAYLOAD_BYTES", 50<<20),
		},
		Summary: SummaryConfig{
			Provider:         envString("SUMMARY_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("SUMMARY_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
		},
		Limits: LimitsConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			SummariesPerDay:   envInt("QUOTA_SUMMARIES_PER_DAY", 20),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validTranscriptionProviders[c.Transcription.Provider] {
		return fmt.Errorf("TRANSCRIPTION_PROVIDER must be one of assemblyai, mock; got %q", c.Transcription.Provider)
	}
	if c.Transcription.Provider == "assemblyai" && c.Transcription.APIKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is required when TRANSCRIPTION_PROVIDER is assemblyai")
	}
	if !strings.HasPrefix(c.Transcription.BaseURL, "http://") && !strings.HasPrefix(c.Transcription.BaseURL, "https://") {
		return fmt.Errorf("ASSEMBLYAI_BASE_URL must start with http:// or https://, got %q", c.Transcription.BaseURL)
	}

	if !validSummaryProviders[c.Summary.Provider] {
		return fmt.Errorf("SUMMARY_PROVIDER must be one of openai, mock; got %q", c.Summary.Provider)
	}
	if c.Summary.Provider == "openai" && c.Summary.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when SUMMARY_PROVIDER is openai")
	}

	if c.Transcription.MaxPayloadBytes <= 0 {
		return fmt.Errorf("TRANSCRIPTION_MAX_PAYLOAD_BYTES must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
