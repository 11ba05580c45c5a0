package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultCorpusURL  = "https://raw.githubusercontent.com/Buzz-News/xdate/main/post.txt"
	DefaultImagesURL  = "https://api.github.com/repos/Buzz-News/xdate/contents/date"
	DefaultTrendsURL  = "https://getdaytrends.com/indonesia/"
	DefaultSeparator  = "---"
	DefaultUserAgent  = "Mozilla/5.0"
	DefaultTrendCount = 5
	DefaultMaxDelay   = 4 * time.Hour
	DefaultTimeout    = 30 * time.Second
)

// SupportedTargets lists the networks the publish step knows how to build.
var SupportedTargets = []string{"bluesky", "mastodon", "twitter"}

// Config holds the settings for a single run.
type Config struct {
	// Sources
	CorpusURL  string
	Separator  string
	ImagesURL  string
	TrendsURL  string
	TrendCount int

	GitHubToken string // optional, raises the contents API rate limit

	// HTTP
	UserAgent   string
	HTTPTimeout time.Duration

	// Run behaviour
	MaxDelay time.Duration
	Targets  []string
	Strict   bool // report "no content" as a failure
	DryRun   bool

	LogLevel string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CorpusURL:   getEnv("TRENDPOST_CORPUS_URL", DefaultCorpusURL),
		Separator:   getEnv("TRENDPOST_SEPARATOR", DefaultSeparator),
		ImagesURL:   getEnv("TRENDPOST_IMAGES_URL", DefaultImagesURL),
		TrendsURL:   getEnv("TRENDPOST_TRENDS_URL", DefaultTrendsURL),
		GitHubToken: getEnv("GITHUB_TOKEN", ""),
		UserAgent:   getEnv("TRENDPOST_USER_AGENT", DefaultUserAgent),
		Targets:     splitList(getEnv("TRENDPOST_TARGETS", "twitter")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	var err error
	cfg.TrendCount, err = strconv.Atoi(getEnv("TRENDPOST_TREND_COUNT", strconv.Itoa(DefaultTrendCount)))
	if err != nil {
		return nil, fmt.Errorf("invalid TRENDPOST_TREND_COUNT: %w", err)
	}

	cfg.MaxDelay, err = time.ParseDuration(getEnv("TRENDPOST_MAX_DELAY", DefaultMaxDelay.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid TRENDPOST_MAX_DELAY: %w", err)
	}

	cfg.HTTPTimeout, err = time.ParseDuration(getEnv("TRENDPOST_HTTP_TIMEOUT", DefaultTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid TRENDPOST_HTTP_TIMEOUT: %w", err)
	}

	cfg.Strict, err = strconv.ParseBool(getEnv("TRENDPOST_STRICT", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRENDPOST_STRICT: %w", err)
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"TRENDPOST_CORPUS_URL": c.CorpusURL,
		"TRENDPOST_IMAGES_URL": c.ImagesURL,
		"TRENDPOST_TRENDS_URL": c.TrendsURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Separator == "" {
		return fmt.Errorf("TRENDPOST_SEPARATOR must not be empty")
	}
	if c.TrendCount < 0 {
		return fmt.Errorf("TRENDPOST_TREND_COUNT must not be negative")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("TRENDPOST_MAX_DELAY must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("TRENDPOST_HTTP_TIMEOUT must be positive")
	}
	return c.ValidateTargets()
}

// ValidateTargets normalizes Targets in place, expanding "all" and dropping duplicates.
func (c *Config) ValidateTargets() error {
	seen := map[string]struct{}{}
	result := make([]string, 0, len(c.Targets))
	for _, raw := range c.Targets {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			c.Targets = append([]string(nil), SupportedTargets...)
			return nil
		}
		if !isSupported(raw) {
			return fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}
	if len(result) == 0 {
		return fmt.Errorf("no targets selected")
	}
	c.Targets = result
	return nil
}

func isSupported(target string) bool {
	for _, t := range SupportedTargets {
		if t == target {
			return true
		}
	}
	return false
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
