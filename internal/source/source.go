/*
Package source fetches the raw material for a post: a text block from a
delimited corpus, an image URL from a folder listing and trending keywords
scraped from an HTML table.
*/
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

var (
	// ErrNoPosts is returned when the corpus has no non-empty block.
	ErrNoPosts = errors.New("no posts found in corpus")
	// ErrNoImages is returned when a folder listing has no recognized image.
	ErrNoImages = errors.New("no images found in listing")
	// ErrUnexpectedListing is returned when a folder listing is not a JSON array.
	ErrUnexpectedListing = errors.New("listing is not an array")
	// ErrNoTable is returned when the trends page has no <table>.
	ErrNoTable = errors.New("no trends table found")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options are shared by every fetcher in this package.
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	// Intn returns a uniform integer in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Intn == nil {
		o.Intn = rand.IntN
	}
	return o
}

func get(ctx context.Context, opts Options, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
