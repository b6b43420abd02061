package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	WebAddr       string
	TelegramToken string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	OpenAIBaseURL    string
	OpenAIImageModel string

	VisitorDataFile string

	MaxConcurrent  int
	AlbumDebounce  time.Duration
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration
}

// Load reads configuration from the environment. Nothing is hard
// required here: the web front needs no token, and the transformation
// API key arrives from the end user per request. cmd/bot checks the
// Telegram token itself.
func Load() Config {
	cfg := Config{
		WebAddr:          strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		TelegramToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		OpenAIBaseURL:    strings.TrimSpace(getEnv("OPENAI_BASE_URL", "https://api.openai.com")),
		OpenAIImageModel: strings.TrimSpace(getEnv("OPENAI_IMAGE_MODEL", "gpt-4o")),
		VisitorDataFile:  strings.TrimSpace(getEnv("VISITOR_DATA_FILE", "visitor_data.json")),
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 4),
		AlbumDebounce:    time.Duration(getEnvInt("ALBUM_DEBOUNCE_MS", 1200)) * time.Millisecond,
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.AlbumDebounce <= 0 {
		cfg.AlbumDebounce = 1200 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
