package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Telegram TelegramConfig
	Ledger   LedgerConfig
	App      AppConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// TelegramConfig holds Telegram Bot API settings
type TelegramConfig struct {
	BotToken        string
	WebhookURL      string
	WebhookSecret   string
	WelcomePhotoURL string
}

// LedgerConfig holds the rewards ledger tunables
type LedgerConfig struct {
	CooldownSeconds int64
	ReferralPoints  int64
	ClaimMin        int64
	ClaimMax        int64
	ReminderMinutes int64
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret   string
	AdminAPIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "rewards_bot"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Telegram: TelegramConfig{
			BotToken:        getEnv("BOT_TOKEN", ""),
			WebhookURL:      getEnv("WEBHOOK_URL", ""),
			WebhookSecret:   getEnv("WEBHOOK_SECRET", uuid.NewString()),
			WelcomePhotoURL: getEnv("WELCOME_PHOTO_URL", ""),
		},
		Ledger: LedgerConfig{
			CooldownSeconds: getEnvInt64("COOLDOWN_SECONDS", 86400),
			ReferralPoints:  getEnvInt64("REFERRAL_POINTS", 20),
			ClaimMin:        getEnvInt64("CLAIM_MIN", 10),
			ClaimMax:        getEnvInt64("CLAIM_MAX", 100),
			ReminderMinutes: getEnvInt64("REMINDER_MINUTES", 30),
		},
		App: AppConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		},
	}

	// Validate required fields
	if config.Telegram.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Ledger.CooldownSeconds <= 0 {
		return nil, fmt.Errorf("COOLDOWN_SECONDS must be positive")
	}

	if config.Ledger.ClaimMin < 1 || config.Ledger.ClaimMax < config.Ledger.ClaimMin {
		return nil, fmt.Errorf("claim award range [%d,%d] is invalid", config.Ledger.ClaimMin, config.Ledger.ClaimMax)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// Cooldown returns the claim cooldown as a duration
func (c *LedgerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// ReminderInterval returns how often the claim reminder job runs
func (c *LedgerConfig) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderMinutes) * time.Minute
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt64 gets an integer environment variable with a fallback default
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
