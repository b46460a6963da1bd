package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Engine timings
	ChatIdleTimeout   time.Duration // close active chats idle longer than this
	RatingTimeout     time.Duration // drop pending ratings older than this
	TickInterval      time.Duration // timeout sweep / match loop period
	SnapshotInterval  time.Duration // dashboard snapshot broadcast period
	AvgServiceMinutes int           // per-position ETA estimate for queued contacts

	// Command tokens recognized in chat
	CloseCommand    string
	ConfirmCommand  string
	DeclineCommand  string
	MenuCommand     string
	TransferCommand string

	CompanyName string

	// Outbound chat bridge; empty means log-only transport
	WebhookURL string

	// WebSocket timings
	WriteWait  time.Duration // time allowed to write a message to the peer
	PongWait   time.Duration // time allowed to read the next pong
	PingPeriod time.Duration // ping interval, must be less than PongWait
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CloseCommand:    strings.ToLower(getEnv("CMD_CLOSE", "close")),
		ConfirmCommand:  strings.ToLower(getEnv("CMD_CONFIRM", "yes")),
		DeclineCommand:  strings.ToLower(getEnv("CMD_DECLINE", "no")),
		MenuCommand:     strings.ToLower(getEnv("CMD_MENU", "menu")),
		TransferCommand: strings.ToLower(getEnv("CMD_TRANSFER", "/transfer")),
		CompanyName:     getEnv("COMPANY_NAME", "CarSat Tracking"),
		WebhookURL:      getEnv("TRANSPORT_WEBHOOK_URL", ""),
	}

	chatIdle, err := getEnvInt("CHAT_IDLE_TIMEOUT_MIN", 20)
	if err != nil {
		return nil, err
	}
	cfg.ChatIdleTimeout = time.Duration(chatIdle) * time.Minute

	rating, err := getEnvInt("RATING_TIMEOUT_MIN", 5)
	if err != nil {
		return nil, err
	}
	cfg.RatingTimeout = time.Duration(rating) * time.Minute

	tick, err := getEnvInt("TICK_INTERVAL_SEC", 5)
	if err != nil {
		return nil, err
	}
	cfg.TickInterval = time.Duration(tick) * time.Second

	snapshot, err := getEnvInt("SNAPSHOT_INTERVAL_SEC", 1)
	if err != nil {
		return nil, err
	}
	cfg.SnapshotInterval = time.Duration(snapshot) * time.Second

	avg, err := getEnvInt("AVG_SERVICE_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	cfg.AvgServiceMinutes = avg

	cfg.WriteWait = 10 * time.Second
	cfg.PongWait = 60 * time.Second
	cfg.PingPeriod = (cfg.PongWait * 9) / 10

	// Trim spaces from allowed origins
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return cfg, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
