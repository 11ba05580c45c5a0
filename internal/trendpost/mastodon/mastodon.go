package mastodon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blacktop/trendpost/internal/trendpost"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer       = "TRENDPOST_MASTODON_SERVER"
	envAccessToken  = "TRENDPOST_MASTODON_ACCESS_TOKEN"
	envClientID     = "TRENDPOST_MASTODON_CLIENT_ID"
	envClientSecret = "TRENDPOST_MASTODON_CLIENT_SECRET"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Client wraps the Mastodon API client.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon poster based on environment configuration.
func New(ctx context.Context) (trendpost.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg), nil
}

// CheckEnv reports missing settings without contacting the server.
func CheckEnv() error {
	_, err := loadConfigFromEnv()
	return err
}

// NewWithConfig constructs a Mastodon poster from explicit settings.
func NewWithConfig(cfg Config) *Client {
	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       cfg.Server,
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	mastodonClient.Timeout = requestTimeout

	return &Client{client: mastodonClient}
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Post publishes a new status with any previously uploaded attachments.
func (c *Client) Post(ctx context.Context, req trendpost.Request) (trendpost.Result, error) {
	mediaIDs := make([]mastodonapi.ID, 0, len(req.MediaIDs))
	for _, id := range req.MediaIDs {
		mediaIDs = append(mediaIDs, mastodonapi.ID(id))
	}

	status, err := c.client.PostStatus(ctx, &mastodonapi.Toot{
		Status:   req.Message,
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return trendpost.Result{}, fmt.Errorf("post status: %w", err)
	}

	return trendpost.Result{Provider: providerName, ID: string(status.ID)}, nil
}

// UploadMedia uploads the image and returns the attachment id.
func (c *Client) UploadMedia(ctx context.Context, path, alt string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", trendpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", path)}
		}
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        file,
		Description: alt,
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	return string(attachment.ID), nil
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Server:       strings.TrimSpace(os.Getenv(envServer)),
		AccessToken:  strings.TrimSpace(os.Getenv(envAccessToken)),
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, envServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}

	if len(missing) > 0 {
		return Config{}, trendpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
