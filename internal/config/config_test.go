package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRENDPOST_CORPUS_URL", "TRENDPOST_SEPARATOR", "TRENDPOST_IMAGES_URL", "TRENDPOST_TRENDS_URL",
		"TRENDPOST_TREND_COUNT", "TRENDPOST_MAX_DELAY", "TRENDPOST_HTTP_TIMEOUT", "TRENDPOST_USER_AGENT",
		"TRENDPOST_TARGETS", "TRENDPOST_STRICT", "GITHUB_TOKEN", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, DefaultCorpusURL, cfg.CorpusURL)
		assert.Equal(t, DefaultImagesURL, cfg.ImagesURL)
		assert.Equal(t, DefaultTrendsURL, cfg.TrendsURL)
		assert.Equal(t, "---", cfg.Separator)
		assert.Equal(t, 5, cfg.TrendCount)
		assert.Equal(t, 4*time.Hour, cfg.MaxDelay)
		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, "Mozilla/5.0", cfg.UserAgent)
		assert.Equal(t, []string{"twitter"}, cfg.Targets)
		assert.False(t, cfg.Strict)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("custom values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRENDPOST_CORPUS_URL", "https://example.com/posts.txt")
		t.Setenv("TRENDPOST_TREND_COUNT", "3")
		t.Setenv("TRENDPOST_MAX_DELAY", "10m")
		t.Setenv("TRENDPOST_TARGETS", "twitter, mastodon")
		t.Setenv("TRENDPOST_STRICT", "true")
		t.Setenv("GITHUB_TOKEN", "ghp_test")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://example.com/posts.txt", cfg.CorpusURL)
		assert.Equal(t, 3, cfg.TrendCount)
		assert.Equal(t, 10*time.Minute, cfg.MaxDelay)
		assert.Equal(t, []string{"twitter", "mastodon"}, cfg.Targets)
		assert.True(t, cfg.Strict)
		assert.Equal(t, "ghp_test", cfg.GitHubToken)
	})

	t.Run("invalid duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRENDPOST_MAX_DELAY", "soon")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRENDPOST_MAX_DELAY")
	})

	t.Run("invalid integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRENDPOST_TREND_COUNT", "five")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRENDPOST_TREND_COUNT")
	})

	t.Run("invalid bool", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRENDPOST_STRICT", "maybe")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRENDPOST_STRICT")
	})
}

func validConfig() *Config {
	return &Config{
		CorpusURL:   DefaultCorpusURL,
		Separator:   DefaultSeparator,
		ImagesURL:   DefaultImagesURL,
		TrendsURL:   DefaultTrendsURL,
		TrendCount:  DefaultTrendCount,
		HTTPTimeout: DefaultTimeout,
		MaxDelay:    DefaultMaxDelay,
		Targets:     []string{"twitter"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad scheme", mutate: func(c *Config) { c.CorpusURL = "ftp://example.com/x" }, wantErr: "TRENDPOST_CORPUS_URL"},
		{name: "missing host", mutate: func(c *Config) { c.TrendsURL = "https://" }, wantErr: "TRENDPOST_TRENDS_URL"},
		{name: "empty separator", mutate: func(c *Config) { c.Separator = "" }, wantErr: "TRENDPOST_SEPARATOR"},
		{name: "negative count", mutate: func(c *Config) { c.TrendCount = -1 }, wantErr: "TRENDPOST_TREND_COUNT"},
		{name: "negative delay", mutate: func(c *Config) { c.MaxDelay = -time.Second }, wantErr: "TRENDPOST_MAX_DELAY"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTPTimeout = 0 }, wantErr: "TRENDPOST_HTTP_TIMEOUT"},
		{name: "unknown target", mutate: func(c *Config) { c.Targets = []string{"myspace"} }, wantErr: "unsupported target"},
		{name: "no targets", mutate: func(c *Config) { c.Targets = []string{" "} }, wantErr: "no targets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateTargets(t *testing.T) {
	t.Run("all expands", func(t *testing.T) {
		cfg := &Config{Targets: []string{"twitter", "ALL"}}
		require.NoError(t, cfg.ValidateTargets())
		assert.Equal(t, SupportedTargets, cfg.Targets)
	})

	t.Run("dedupes and lowercases", func(t *testing.T) {
		cfg := &Config{Targets: []string{"Twitter", "twitter", " bluesky "}}
		require.NoError(t, cfg.ValidateTargets())
		assert.Equal(t, []string{"twitter", "bluesky"}, cfg.Targets)
	})
}
