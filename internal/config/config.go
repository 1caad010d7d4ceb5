// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultDatabasePath  = "./data/booru.db"
	DefaultWatchInterval = 30 * time.Minute

	// DefaultHomeConcurrency is how many saved feeds the home feed fetches at once.
	DefaultHomeConcurrency = 4
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	NotifyChatID     int64
	WatchInterval    time.Duration
	HomeConcurrency  int
	Rule34BaseURL    string
	RealbooruBaseURL string
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	var notifyChat int64
	if raw := strings.TrimSpace(os.Getenv("NOTIFY_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_CHAT_ID %q: %w", raw, err)
		}
		notifyChat = id
	}

	interval := DefaultWatchInterval
	if raw := strings.TrimSpace(os.Getenv("WATCH_INTERVAL_MINUTES")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid WATCH_INTERVAL_MINUTES %q: must be a positive integer", raw)
		}
		interval = time.Duration(minutes) * time.Minute
	}

	concurrency := DefaultHomeConcurrency
	if raw := strings.TrimSpace(os.Getenv("HOME_CONCURRENCY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HOME_CONCURRENCY %q: must be a positive integer", raw)
		}
		concurrency = n
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     DatabasePath(),
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		NotifyChatID:     notifyChat,
		WatchInterval:    interval,
		HomeConcurrency:  concurrency,
		Rule34BaseURL:    os.Getenv("RULE34_BASE_URL"),
		RealbooruBaseURL: os.Getenv("REALBOORU_BASE_URL"),
	}, nil
}

// DatabasePath returns DATABASE_PATH or the default location.
func DatabasePath() string {
	if p := os.Getenv("DATABASE_PATH"); p != "" {
		return p
	}
	return DefaultDatabasePath
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// WatcherEnabled reports whether saved feeds should be pushed to a chat.
func (c *Config) WatcherEnabled() bool {
	return c.NotifyChatID != 0
}
