package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the pipeline reads from the environment.
type Config struct {
	Port   string
	DBPath string

	// Transcription service
	TranscribeURL      string
	TranscribeAPIKey   string
	TranscribeLanguage string
	MaxPayloadBytes    int64
	SegmentSeconds     int

	// Embedding service
	EmbedURL    string
	EmbedAPIKey string

	// Scheduler
	MaxConcurrentJobs int
	MaxAttempts       int
	RetryDelayBase    time.Duration
	MinStageDelay     time.Duration
	StaggerBase       time.Duration
	StaggerStep       time.Duration
	SkipExisting      bool
	OffPeakEnabled    bool
	OffPeakStartHour  int
	OffPeakEndHour    int

	WorkDir string
}

// Load reads .env when present, then the environment, applying defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "data/agrovoice.db"),

		TranscribeURL:      getEnv("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeAPIKey:   os.Getenv("TRANSCRIBE_API_KEY"),
		TranscribeLanguage: getEnv("TRANSCRIBE_LANGUAGE", "en"),
		MaxPayloadBytes:    getEnvInt64("TRANSCRIBE_MAX_BYTES", 25*1024*1024),
		SegmentSeconds:     getEnvInt("TRANSCRIBE_SEGMENT_SECONDS", 240),

		EmbedURL:    getEnv("EMBED_URL", "https://api.openai.com/v1/embeddings"),
		EmbedAPIKey: os.Getenv("EMBED_API_KEY"),

		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
		MaxAttempts:       getEnvInt("JOB_MAX_ATTEMPTS", 3),
		RetryDelayBase:    getEnvDuration("JOB_RETRY_DELAY", 30*time.Second),
		MinStageDelay:     getEnvDuration("JOB_MIN_STAGE_DELAY", 5*time.Second),
		StaggerBase:       getEnvDuration("BATCH_STAGGER_BASE", 2*time.Second),
		StaggerStep:       getEnvDuration("BATCH_STAGGER_STEP", 3*time.Second),
		SkipExisting:      getEnvBool("SKIP_EXISTING", true),
		OffPeakEnabled:    getEnvBool("OFF_PEAK_ENABLED", false),
		OffPeakStartHour:  getEnvInt("OFF_PEAK_START_HOUR", 1),
		OffPeakEndHour:    getEnvInt("OFF_PEAK_END_HOUR", 7),

		WorkDir: getEnv("WORK_DIR", os.TempDir()),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
