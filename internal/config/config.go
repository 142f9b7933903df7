package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Live service
	GeminiAPIKey string
	Model        string
	Voice        string
	Endpoint     string // empty selects the default endpoint

	// Interview context
	JobTitle           string
	Company            string
	ResumeFile         string
	JobDescriptionFile string
	AnswerLength       string // "short", "medium" or "long"

	// Capture settings
	CaptureSampleRate int
	CaptureFrameSize  int

	// Post-session output
	DataDir        string
	SummaryEnabled bool
	SummaryModel   string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file found, using environment variables only")
	}

	cfg := &Config{
		// Live service. The key is intentionally not validated here: a
		// missing credential is reported at connect time.
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		Model:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		Voice:        getEnvOrDefault("GEMINI_VOICE", "Kore"),
		Endpoint:     os.Getenv("GEMINI_LIVE_ENDPOINT"),

		// Interview context
		JobTitle:           os.Getenv("JOB_TITLE"),
		Company:            os.Getenv("COMPANY"),
		ResumeFile:         os.Getenv("RESUME_FILE"),
		JobDescriptionFile: os.Getenv("JOB_DESCRIPTION_FILE"),
		AnswerLength:       getEnvOrDefault("ANSWER_LENGTH", "medium"),

		// Capture
		CaptureSampleRate: getIntEnvOrDefault("CAPTURE_SAMPLE_RATE", 48000),
		CaptureFrameSize:  getIntEnvOrDefault("CAPTURE_FRAME_SIZE", 4096),

		// Post-session output
		DataDir:        getEnvOrDefault("DATA_DIR", "./data"),
		SummaryEnabled: getBoolEnvOrDefault("SUMMARY_ENABLED", false),
		SummaryModel:   getEnvOrDefault("SUMMARY_MODEL", "gemini-2.5-flash"),

		// Logging
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.AnswerLength {
	case "short", "medium", "long":
	default:
		return fmt.Errorf("ANSWER_LENGTH must be 'short', 'medium' or 'long'")
	}

	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive")
	}

	if c.CaptureFrameSize <= 0 {
		return fmt.Errorf("CAPTURE_FRAME_SIZE must be positive")
	}

	if c.SummaryEnabled && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when SUMMARY_ENABLED is set")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
