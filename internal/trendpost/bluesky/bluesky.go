package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blacktop/trendpost/internal/trendpost"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	envHandle      = "TRENDPOST_BLUESKY_HANDLE"
	envAppPassword = "TRENDPOST_BLUESKY_APP_PASSWORD"
	envPDSURL      = "TRENDPOST_BLUESKY_PDS_URL"

	providerName   = "bluesky"
	requestTimeout = 30 * time.Second

	// DefaultPDSURL is used when neither the caller nor the environment picks a PDS.
	DefaultPDSURL = "https://bsky.social"
)

// Config allows the caller to supply defaults prior to reading environment variables.
type Config struct {
	PDSURL string
}

// Client implements the trendpost.Poster interface for Bluesky.
//
// Bluesky attaches blobs by value, so uploaded blobs are kept until the post
// that references them is created.
type Client struct {
	client *xrpc.Client

	mu      sync.Mutex
	blobs   map[string]blobRef
	uploads int
}

type blobRef struct {
	blob *util.LexBlob
	alt  string
}

// New constructs a Bluesky poster and opens a session.
func New(ctx context.Context, base Config) (trendpost.Poster, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	userAgent := "trendpost/1"
	xrpcClient := &xrpc.Client{
		Client:    httpClient,
		Host:      cfg.PDSURL,
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Handle,
		Password:   cfg.AppPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{client: xrpcClient, blobs: make(map[string]blobRef)}, nil
}

// CheckEnv reports missing credentials without opening a session.
func CheckEnv() error {
	_, err := loadConfig(Config{})
	return err
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Post creates a new Bluesky post embedding any uploaded images.
func (c *Client) Post(ctx context.Context, req trendpost.Request) (trendpost.Result, error) {
	post := &bsky.FeedPost{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Text:      req.Message,
	}

	images, err := c.takeImages(req.MediaIDs)
	if err != nil {
		return trendpost.Result{}, err
	}
	if len(images) > 0 {
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{Images: images},
		}
	}

	out, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       c.client.Auth.Did,
		Record: &util.LexiconTypeDecoder{
			Val: post,
		},
	})
	if err != nil {
		return trendpost.Result{}, fmt.Errorf("create record: %w", err)
	}

	return trendpost.Result{Provider: providerName, ID: out.Uri}, nil
}

// UploadMedia uploads the image as a blob and returns a local reference to it.
func (c *Client) UploadMedia(ctx context.Context, path, alt string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", trendpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", path)}
		}
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	resp, err := atproto.RepoUploadBlob(ctx, c.client, file)
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	if resp.Blob == nil {
		return "", fmt.Errorf("upload blob: empty response")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads++
	id := "blob-" + strconv.Itoa(c.uploads)
	c.blobs[id] = blobRef{blob: resp.Blob, alt: alt}

	return id, nil
}

func (c *Client) takeImages(ids []string) ([]*bsky.EmbedImages_Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	images := make([]*bsky.EmbedImages_Image, 0, len(ids))
	for _, id := range ids {
		ref, ok := c.blobs[id]
		if !ok {
			return nil, trendpost.UnknownMediaError{Provider: providerName, MediaID: id}
		}
		delete(c.blobs, id)
		images = append(images, &bsky.EmbedImages_Image{
			Alt:   ref.alt,
			Image: ref.blob,
		})
	}
	return images, nil
}

// ProviderConfig merges defaults with environment-defined values.
type ProviderConfig struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

func loadConfig(base Config) (ProviderConfig, error) {
	cfg := ProviderConfig{
		Handle:      strings.TrimSpace(os.Getenv(envHandle)),
		AppPassword: strings.TrimSpace(os.Getenv(envAppPassword)),
		PDSURL:      strings.TrimSpace(os.Getenv(envPDSURL)),
	}

	if cfg.PDSURL == "" {
		cfg.PDSURL = strings.TrimSpace(base.PDSURL)
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = DefaultPDSURL
	}

	var missing []string
	if cfg.Handle == "" {
		missing = append(missing, envHandle)
	}
	if cfg.AppPassword == "" {
		missing = append(missing, envAppPassword)
	}

	if len(missing) > 0 {
		return ProviderConfig{}, trendpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
