package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/blacktop/trendpost/internal/logutil"
)

// ImageExtensions are the file suffixes accepted as images, compared case-insensitively.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// ListingEntry is one item of a contents API directory listing.
type ListingEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// ImageFolder picks random images from a remote folder listing.
type ImageFolder struct {
	url   string
	token string
	opts  Options
}

// NewImageFolder returns an ImageFolder for a contents API URL. token is optional.
func NewImageFolder(listingURL, token string, opts Options) *ImageFolder {
	return &ImageFolder{url: listingURL, token: token, opts: opts.withDefaults()}
}

// RandomImage lists the folder and returns the download URL of one image chosen uniformly at random.
func (f *ImageFolder) RandomImage(ctx context.Context) (string, error) {
	logutil.Infof("fetching image listing from %s", f.url)

	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if f.token != "" {
		headers["Authorization"] = "Bearer " + f.token
	}

	body, err := get(ctx, f.opts, f.url, headers)
	if err != nil {
		return "", err
	}

	entries, err := parseListing(body)
	if err != nil {
		return "", err
	}

	images := FilterImages(entries)
	if len(images) == 0 {
		return "", ErrNoImages
	}

	chosen := images[f.opts.Intn(len(images))]
	logutil.Infof("picked image %s", chosen)
	return chosen, nil
}

func parseListing(body []byte) ([]ListingEntry, error) {
	var entries []ListingEntry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	// the contents API answers with an object for errors and single files
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && obj.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedListing, obj.Message)
	}
	return nil, ErrUnexpectedListing
}

// FilterImages returns the download URLs of file entries with an image extension.
func FilterImages(entries []ListingEntry) []string {
	var urls []string
	for _, entry := range entries {
		if entry.Type != "file" || entry.DownloadURL == "" {
			continue
		}
		if IsImage(entry.DownloadURL) {
			urls = append(urls, entry.DownloadURL)
		}
	}
	return urls
}

// IsImage reports whether the path of rawURL ends in one of ImageExtensions.
func IsImage(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, known := range ImageExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
