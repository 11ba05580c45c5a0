package trendpost

import "context"

// Request defines the post payload handed to a provider after media upload.
type Request struct {
	Message  string
	MediaIDs []string
}

// Result identifies a published post.
type Result struct {
	Provider string
	ID       string
}

// Poster abstracts a social network that can publish content.
type Poster interface {
	Name() string
	// UploadMedia uploads the image at path and returns the provider's media reference.
	UploadMedia(ctx context.Context, path, alt string) (string, error)
	Post(ctx context.Context, req Request) (Result, error)
}
