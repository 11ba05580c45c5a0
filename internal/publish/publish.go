package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/blacktop/trendpost/internal/logutil"
	"github.com/blacktop/trendpost/internal/trendpost"
)

const defaultAltText = "Image attached via trendpost"

// Post is the composed content handed to the publisher.
type Post struct {
	Text     string
	ImageURL string // optional
	ImageAlt string
}

// Config configures a Publisher.
type Config struct {
	Posters    []trendpost.Poster
	HTTPClient *http.Client // used to download the image
	UserAgent  string
	TempDir    string // defaults to os.TempDir()
}

// Publisher downloads the optional image once and posts to every target.
type Publisher struct {
	posters   []trendpost.Poster
	client    *http.Client
	userAgent string
	tempDir   string
}

// New returns a Publisher for cfg.
func New(cfg Config) *Publisher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Publisher{
		posters:   cfg.Posters,
		client:    client,
		userAgent: cfg.UserAgent,
		tempDir:   cfg.TempDir,
	}
}

// Publish posts p to every configured target. A failed image download
// degrades to a text-only post. The temporary image is removed before
// Publish returns, whatever the outcome of the post calls.
func (p *Publisher) Publish(ctx context.Context, post Post) ([]trendpost.Result, error) {
	if len(p.posters) == 0 {
		return nil, errors.New("no targets configured")
	}

	var imagePath string
	if post.ImageURL != "" {
		logutil.Infof("downloading image from %s", post.ImageURL)
		file, err := p.download(ctx, post.ImageURL)
		if err != nil {
			logutil.Warnf("image download failed, posting text only: %v", err)
		} else {
			imagePath = file
			defer func() {
				if err := os.Remove(imagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
					logutil.Warnf("remove temp image %s: %v", imagePath, err)
				}
			}()
		}
	}

	alt := strings.TrimSpace(post.ImageAlt)
	if alt == "" && imagePath != "" {
		alt = defaultAltText
	}

	var (
		results []trendpost.Result
		errs    []error
	)
	for _, poster := range p.posters {
		res, err := publishOne(ctx, poster, post.Text, imagePath, alt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", poster.Name(), err))
			continue
		}
		logutil.Infof("posted to %s: id=%s", poster.Name(), res.ID)
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

func publishOne(ctx context.Context, poster trendpost.Poster, text, imagePath, alt string) (trendpost.Result, error) {
	req := trendpost.Request{Message: text}
	if imagePath != "" {
		logutil.Infof("uploading image to %s", poster.Name())
		mediaID, err := poster.UploadMedia(ctx, imagePath, alt)
		if err != nil {
			return trendpost.Result{}, fmt.Errorf("upload media: %w", err)
		}
		logutil.Debugf("media uploaded to %s: media_id=%s", poster.Name(), mediaID)
		req.MediaIDs = []string{mediaID}
	}

	logutil.Infof("posting to %s...", poster.Name())
	return poster.Post(ctx, req)
}

// download writes the image at rawURL to a temp file and returns its path.
func (p *Publisher) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	file, err := os.CreateTemp(p.tempDir, "trendpost-*"+imageExt(rawURL))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close image: %w", err)
	}

	return file.Name(), nil
}

// imageExt keeps the extension so providers can tell the media type from the name.
func imageExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || strings.ContainsAny(ext, `/\*`) {
		return ".jpg"
	}
	return ext
}
