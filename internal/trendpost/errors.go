package trendpost

import (
	"fmt"
	"strings"
)

// MissingEnvError is returned when required credentials are missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures provider-specific validation issues.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// UnknownMediaError is returned when a provider is asked to attach a media
// reference it did not hand out.
type UnknownMediaError struct {
	Provider string
	MediaID  string
}

func (e UnknownMediaError) Error() string {
	return fmt.Sprintf("%s: unknown media reference %q", e.Provider, e.MediaID)
}
