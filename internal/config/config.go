package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Content provider
	ContentProvider string // "youtube" | "mock"
	YouTubeAPIKey   string

	// Syllabus
	SyllabusProvider string // "static" | "gemini"
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Web push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Workers
	HydrateConcurrency      int
	ReportConcurrency       int
	NotificationConcurrency int
	JobMaxAttempts          int

	// Weekly reports
	WeeklyReportsEnabled bool
	WeeklyReportCron     string
	Location             *time.Location

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:             mustGetEnv("DATABASE_URL"),
		MigrationsDir:           getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                mustGetEnv("REDIS_URL"),
		JWTSecret:               mustGetEnv("JWT_SECRET"),
		ContentProvider:         strings.ToLower(getEnvOrDefault("CONTENT_PROVIDER", "youtube")),
		YouTubeAPIKey:           getEnvOrDefault("YOUTUBE_API_KEY", ""),
		SyllabusProvider:        strings.ToLower(getEnvOrDefault("SYLLABUS_PROVIDER", "static")),
		GeminiAPIKey:            getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:             getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs:    getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 2),
		VAPIDPublicKey:          getEnvOrDefault("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:         getEnvOrDefault("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:            getEnvOrDefault("VAPID_SUBJECT", "mailto:admin@mindsphere.app"),
		HydrateConcurrency:      getEnvAsIntOrDefault("WORKER_CONCURRENCY_HYDRATE", 2),
		ReportConcurrency:       getEnvAsIntOrDefault("WORKER_CONCURRENCY_REPORTS", 1),
		NotificationConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY_NOTIFICATIONS", 4),
		JobMaxAttempts:          getEnvAsIntOrDefault("JOB_MAX_ATTEMPTS", 3),
		WeeklyReportsEnabled:    getEnvAsBoolOrDefault("WEEKLY_REPORTS_ENABLED", true),
		WeeklyReportCron:        getEnvOrDefault("WEEKLY_REPORT_CRON", "5 0 * * 1"),
		Location:                getEnvAsLocationOrDefault("TIMEZONE", time.UTC),
		FrontendURL:             getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// UseYouTube reports whether the real content provider can be used.
func (c *Config) UseYouTube() bool {
	return c.ContentProvider == "youtube" && c.YouTubeAPIKey != ""
}

// UseGemini reports whether generated syllabi are enabled.
func (c *Config) UseGemini() bool {
	return c.SyllabusProvider == "gemini" && c.GeminiAPIKey != ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsLocationOrDefault(key string, defaultVal *time.Location) *time.Location {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	loc, err := time.LoadLocation(val)
	if err != nil {
		return defaultVal
	}
	return loc
}
