package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blacktop/trendpost/internal/logutil"
	"github.com/blacktop/trendpost/internal/trendpost"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	envAPIKey       = "X_API_KEY"
	envAPISecret    = "X_API_SECRET"
	envAccessToken  = "X_ACCESS_TOKEN"
	envAccessSecret = "X_ACCESS_TOKEN_SECRET"

	providerName = "twitter"

	metadataEndpoint = "https://upload.twitter.com/1.1/media/metadata/create.json"
	statusEndpoint   = "https://api.x.com/2/media/upload"

	maxStatusChecks = 10
)

var httpTimeout = 30 * time.Second

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Client implements the Poster interface for X (Twitter).
type Client struct {
	api *gotwi.Client
}

// New constructs an X poster using gotwi and OAuth 1.0a credentials from the environment.
func New(ctx context.Context) (trendpost.Poster, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: httpTimeout}
	debugEnabled := os.Getenv("TRENDPOST_TWITTER_DEBUG") == "1" || logutil.Verbose()

	client, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           httpClient,
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		Debug:                debugEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}

	if !client.IsReady() {
		return nil, fmt.Errorf("twitter client not ready")
	}

	return &Client{api: client}, nil
}

// CheckEnv reports missing credentials without contacting X.
func CheckEnv() error {
	_, err := loadConfigFromEnv()
	return err
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Post creates a tweet with the message and any previously uploaded media.
func (c *Client) Post(ctx context.Context, req trendpost.Request) (trendpost.Result, error) {
	input := &managetweettypes.CreateInput{
		Text: gotwi.String(req.Message),
	}
	if len(req.MediaIDs) > 0 {
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: req.MediaIDs}
	}

	logutil.Debugf("posting tweet: media_count=%d", len(req.MediaIDs))
	res, err := managetweet.Create(ctx, c.api, input)
	if err != nil {
		return trendpost.Result{}, fmt.Errorf("post tweet: %w", unwrapGotwiError(err))
	}

	id := gotwi.StringValue(res.Data.ID)
	logutil.Debugf("tweet posted: id=%s", id)

	return trendpost.Result{Provider: providerName, ID: id}, nil
}

// UploadMedia runs the chunked INIT/APPEND/FINALIZE upload and returns the media id.
func (c *Client) UploadMedia(ctx context.Context, imagePath, altText string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", trendpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", imagePath)}
		}
		return "", fmt.Errorf("read image: %w", err)
	}

	mediaType, category, err := resolveMediaType(imagePath, data)
	if err != nil {
		return "", err
	}

	logutil.Debugf("initialize upload: media_type=%s bytes=%d", mediaType, len(data))
	initRes, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
		MediaType:     mediaType,
		TotalBytes:    len(data),
		MediaCategory: category,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", unwrapGotwiError(err))
	}
	if err := partialError(initRes.Errors); err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}

	mediaID := initRes.Data.MediaID

	appendIn := &uploadtypes.AppendInput{
		MediaID:      mediaID,
		Media:        bytes.NewReader(data),
		SegmentIndex: 0,
	}
	appendIn.GenerateBoundary()

	logutil.Debugf("append upload: media_id=%s segment=0", mediaID)
	appendRes, err := upload.Append(ctx, c.api, appendIn)
	if err != nil {
		return "", fmt.Errorf("append upload: %w", unwrapGotwiError(err))
	}
	if err := partialError(appendRes.Errors); err != nil {
		return "", fmt.Errorf("append upload: %w", err)
	}

	if err := c.finalize(ctx, mediaID); err != nil {
		return "", err
	}

	if alt := strings.TrimSpace(altText); alt != "" {
		if err := c.setAltText(ctx, mediaID, alt); err != nil {
			return "", err
		}
	}

	return mediaID, nil
}

func (c *Client) finalize(ctx context.Context, mediaID string) error {
	res, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
	if err != nil {
		return fmt.Errorf("finalize upload: %w", unwrapGotwiError(err))
	}
	if err := partialError(res.Errors); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	info := processingInfo{
		State:          string(res.Data.ProcessingInfo.State),
		CheckAfterSecs: int(res.Data.ProcessingInfo.CheckAfterSecs),
	}
	logutil.Debugf("finalize state=%s media_id=%s", info.State, mediaID)

	return awaitProcessing(ctx, info, func(ctx context.Context) (processingInfo, error) {
		return c.status(ctx, mediaID)
	}, sleepCtx)
}

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// awaitProcessing polls STATUS until the media is usable or processing fails.
func awaitProcessing(
	ctx context.Context,
	info processingInfo,
	check func(context.Context) (processingInfo, error),
	wait func(context.Context, time.Duration) error,
) error {
	for attempt := 0; ; attempt++ {
		switch info.State {
		case "", string(resources.ProcessingInfoStateSucceeded):
			return nil
		case string(resources.ProcessingInfoStateInProgress), string(resources.ProcessingInfoStatePending):
		default:
			if info.Error != nil && info.Error.Message != "" {
				return fmt.Errorf("media processing failed: %s", info.Error.Message)
			}
			return fmt.Errorf("media processing failed: state=%s", info.State)
		}

		if attempt >= maxStatusChecks {
			return fmt.Errorf("media processing did not finish after %d status checks", maxStatusChecks)
		}
		delay := time.Duration(max(info.CheckAfterSecs, 1)) * time.Second
		if err := wait(ctx, delay); err != nil {
			return err
		}

		var err error
		if info, err = check(ctx); err != nil {
			return err
		}
		logutil.Debugf("status state=%s attempt=%d", info.State, attempt+1)
	}
}

func (c *Client) status(ctx context.Context, mediaID string) (processingInfo, error) {
	var res statusResponse
	if err := c.api.CallAPI(ctx, statusEndpoint, http.MethodGet, &statusParameters{mediaID: mediaID}, &res); err != nil {
		return processingInfo{}, fmt.Errorf("upload status: %w", unwrapGotwiError(err))
	}
	return res.Data.ProcessingInfo, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) setAltText(ctx context.Context, mediaID, altText string) error {
	params := &metadataParameters{
		mediaID: mediaID,
		altText: altText,
	}

	ctx = context.WithValue(ctx, "Content-Type", "application/json;charset=UTF-8")

	if err := c.api.CallAPI(ctx, metadataEndpoint, http.MethodPost, params, &metadataResponse{}); err != nil {
		return fmt.Errorf("set alt text: %w", unwrapGotwiError(err))
	}
	logutil.Debugf("alt text set: media_id=%s", mediaID)

	return nil
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:       strings.TrimSpace(os.Getenv(envAPIKey)),
		APISecret:    strings.TrimSpace(os.Getenv(envAPISecret)),
		AccessToken:  strings.TrimSpace(os.Getenv(envAccessToken)),
		AccessSecret: strings.TrimSpace(os.Getenv(envAccessSecret)),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, envAPIKey)
	}
	if cfg.APISecret == "" {
		missing = append(missing, envAPISecret)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}
	if cfg.AccessSecret == "" {
		missing = append(missing, envAccessSecret)
	}

	if len(missing) > 0 {
		return Config{}, trendpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}

func resolveMediaType(path string, data []byte) (uploadtypes.MediaType, uploadtypes.MediaCategory, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case ".png":
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case ".gif":
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case ".webp":
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}

	// temp files may lack a usable extension; sniff the bytes
	detected := http.DetectContentType(data)
	switch {
	case strings.Contains(detected, "jpeg"):
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case strings.Contains(detected, "png"):
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case strings.Contains(detected, "gif"):
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case strings.Contains(detected, "webp"):
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}

	return "", "", trendpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("unsupported image type for %q", path)}
}

func partialError(partials []resources.PartialError) error {
	if len(partials) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(partials))
	for _, pe := range partials {
		switch {
		case pe.Detail != nil && *pe.Detail != "":
			msgs = append(msgs, *pe.Detail)
		case pe.Title != nil && *pe.Title != "":
			msgs = append(msgs, *pe.Title)
		case pe.ResourceType != nil:
			msgs = append(msgs, fmt.Sprintf("%s", *pe.ResourceType))
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "unknown error")
	}
	return errors.New(strings.Join(msgs, "; "))
}

func unwrapGotwiError(err error) error {
	var gwErr *gotwi.GotwiError
	if errors.As(err, &gwErr) && gwErr != nil {
		return errors.New(summarizeGotwiError(gwErr))
	}
	return err
}

func summarizeGotwiError(err *gotwi.GotwiError) string {
	if err == nil {
		return "unknown X API error"
	}

	parts := make([]string, 0, 4)
	if err.Title != "" {
		parts = append(parts, err.Title)
	}
	if err.Detail != "" {
		parts = append(parts, err.Detail)
	}
	for _, apiErr := range err.APIErrors {
		if apiErr.Message != "" {
			parts = append(parts, apiErr.Message)
		}
	}
	if len(parts) == 0 {
		if msg := err.Error(); msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "X API request failed")
	}

	return strings.Join(parts, "; ")
}

type metadataParameters struct {
	mediaID     string
	altText     string
	accessToken string
}

func (p *metadataParameters) SetAccessToken(token string) {
	p.accessToken = token
}

func (p *metadataParameters) AccessToken() string {
	return p.accessToken
}

func (p *metadataParameters) ResolveEndpoint(endpointBase string) string {
	return endpointBase
}

func (p *metadataParameters) Body() (io.Reader, error) {
	body := struct {
		MediaID string `json:"media_id"`
		AltText struct {
			Text string `json:"text"`
		} `json:"alt_text"`
	}{}
	body.MediaID = p.mediaID
	body.AltText.Text = p.altText

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(buf), nil
}

func (p *metadataParameters) ParameterMap() map[string]string {
	return map[string]string{}
}

type metadataResponse struct{}

func (metadataResponse) HasPartialError() bool { return false }

type statusParameters struct {
	mediaID     string
	accessToken string
}

func (p *statusParameters) SetAccessToken(token string) { p.accessToken = token }

func (p *statusParameters) AccessToken() string { return p.accessToken }

func (p *statusParameters) ResolveEndpoint(endpointBase string) string {
	q := url.Values{}
	for k, v := range p.ParameterMap() {
		q.Set(k, v)
	}
	return endpointBase + "?" + q.Encode()
}

func (p *statusParameters) Body() (io.Reader, error) { return nil, nil }

func (p *statusParameters) ParameterMap() map[string]string {
	return map[string]string{
		"command":  "STATUS",
		"media_id": p.mediaID,
	}
}

type statusResponse struct {
	Data struct {
		ProcessingInfo processingInfo `json:"processing_info"`
	} `json:"data"`
}

func (statusResponse) HasPartialError() bool { return false }
