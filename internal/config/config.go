// Package config loads server settings from the environment, with a .env
// file (if present) applied first.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool

	DailySalt string

	MaxGuesses      int
	CountUnresolved bool
	SessionTTL      time.Duration

	SuggestLimit    int
	SuggestMode     string
	SuggestCapitals bool

	CountriesFile string
	AliasesFile   string
}

// Load reads .env (ignored when missing) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		Port:     getEnv("PORT", "5175"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBPath:   getEnv("DB_PATH", "./data/app.db"),

		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: getEnvInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "capitals_token"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",

		DailySalt: getEnv("DAILY_SALT", "local_dev_salt"),

		MaxGuesses:      getEnvInt("MAX_GUESSES", 5),
		CountUnresolved: getEnvBool("COUNT_UNRESOLVED", true),
		SessionTTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),

		SuggestLimit:    getEnvInt("SUGGEST_LIMIT", 10),
		SuggestMode:     getEnv("SUGGEST_MODE", "contains"),
		SuggestCapitals: getEnvBool("SUGGEST_CAPITALS", false),

		CountriesFile: os.Getenv("COUNTRIES_FILE"),
		AliasesFile:   os.Getenv("ALIASES_FILE"),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
