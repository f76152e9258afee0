package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
		{"uses default for non-positive", "TEST_INT_4", "0", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}
			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsBoolOrDefault(t *testing.T) {
	t.Setenv("TEST_BOOL_1", "false")
	t.Setenv("TEST_BOOL_2", "maybe")

	assert.False(t, getEnvAsBoolOrDefault("TEST_BOOL_1", true))
	assert.True(t, getEnvAsBoolOrDefault("TEST_BOOL_2", true))
	assert.True(t, getEnvAsBoolOrDefault("TEST_BOOL_UNSET", true))
}

func TestGetEnvAsLocationOrDefault(t *testing.T) {
	t.Setenv("TEST_TZ_BAD", "Not/AZone")
	assert.Equal(t, time.UTC, getEnvAsLocationOrDefault("TEST_TZ_BAD", time.UTC))
	assert.Equal(t, time.UTC, getEnvAsLocationOrDefault("TEST_TZ_UNSET", time.UTC))
}

func TestMustGetEnv_Panics(t *testing.T) {
	assert.Panics(t, func() {
		mustGetEnv("NONEXISTENT_REQUIRED_VAR")
	})
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "value123")
	assert.Equal(t, "value123", mustGetEnv("TEST_REQUIRED"))
}

func TestLoad_ProviderSelection(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mindsphere")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONTENT_PROVIDER", "YouTube")
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("SYLLABUS_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "youtube", cfg.ContentProvider)
	assert.False(t, cfg.UseYouTube(), "missing key must select the mock provider")
	assert.True(t, cfg.UseGemini())
	assert.Equal(t, 3, cfg.JobMaxAttempts)
}
