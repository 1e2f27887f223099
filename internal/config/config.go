package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TranscriberBackend  = "backend"
	TranscriberDeepgram = "deepgram"
)

// Config stores runtime configuration for the voice command client.
type Config struct {
	Backend     BackendConfig
	Transcriber TranscriberConfig
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Rules       RulesConfig
	Command     CommandConfig
	Logging     LoggingConfig
}

type BackendConfig struct {
	URL            string
	AuthToken      string
	Timeout        time.Duration
	RawAudioUpload bool
}

type TranscriberConfig struct {
	Provider string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	TempDir         string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type CommandConfig struct {
	// Timezone overrides the detected local zone when set.
	Timezone string
	Email    string
}

type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load resolves configuration from .env files, environment variables and
// sensible defaults. Variables already set in the environment win over .env
// values.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "yessir")

	if err := loadDotEnv(configDir); err != nil {
		return Config{}, err
	}

	rulesPath := strings.TrimSpace(os.Getenv("YESSIR_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(configDir, "transcript.rules")
	}

	cfg := Config{
		Backend: BackendConfig{
			URL:            firstNonEmpty(os.Getenv("YESSIR_BACKEND_URL"), os.Getenv("YESSIR_API_URL")),
			AuthToken:      firstNonEmpty(os.Getenv("YESSIR_AUTH_TOKEN"), os.Getenv("YESSIR_API_TOKEN")),
			Timeout:        time.Duration(envOrDefaultInt("YESSIR_HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
			RawAudioUpload: envOrDefaultBool("YESSIR_RAW_AUDIO_UPLOAD", false),
		},
		Transcriber: TranscriberConfig{
			Provider: strings.ToLower(envOrDefault("YESSIR_TRANSCRIBER", TranscriberBackend)),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("YESSIR_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("YESSIR_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("YESSIR_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("YESSIR_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("YESSIR_CHANNELS", 1),
			TempDir:    envOrDefault("YESSIR_AUDIO_TEMP_DIR", os.TempDir()),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("YESSIR_RULE_ITERATION_LIMIT", 30),
		},
		Command: CommandConfig{
			Timezone: strings.TrimSpace(os.Getenv("YESSIR_TIMEZONE")),
			Email:    strings.TrimSpace(os.Getenv("YESSIR_EMAIL")),
		},
		Logging: LoggingConfig{
			Level:      strings.ToLower(envOrDefault("YESSIR_LOG_LEVEL", "info")),
			Format:     strings.ToLower(envOrDefault("YESSIR_LOG_FORMAT", "console")),
			File:       strings.TrimSpace(os.Getenv("YESSIR_LOG_FILE")),
			MaxSizeMB:  envOrDefaultInt("YESSIR_LOG_MAX_SIZE_MB", 10),
			MaxBackups: envOrDefaultInt("YESSIR_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envOrDefaultInt("YESSIR_LOG_MAX_AGE_DAYS", 28),
		},
	}

	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Transcriber.Provider != TranscriberBackend && cfg.Transcriber.Provider != TranscriberDeepgram {
		return Config{}, fmt.Errorf("unsupported transcriber %q", cfg.Transcriber.Provider)
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 10
	}

	return cfg, nil
}

// Validate reports settings required to talk to the backend.
func (c Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("YESSIR_BACKEND_URL is not configured")
	}
	if c.Transcriber.Provider == TranscriberDeepgram && c.Deepgram.APIKey == "" {
		return errors.New("DEEPGRAM_API_KEY is required when YESSIR_TRANSCRIBER=deepgram")
	}
	return nil
}

// loadDotEnv loads YESSIR_ENV_FILE, or else ./.env and the user config .env,
// skipping files that do not exist.
func loadDotEnv(configDir string) error {
	candidates := []string{".env", filepath.Join(configDir, ".env")}
	if explicit := strings.TrimSpace(os.Getenv("YESSIR_ENV_FILE")); explicit != "" {
		candidates = []string{explicit}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %q: %w", path, err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
