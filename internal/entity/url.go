// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL, along with its
// access statistics, and the errors every layer uses to report failures.
package entity

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrAllocationExhausted is returned when no unused short code was found within the attempt budget.
	ErrAllocationExhausted = errors.New("failed to allocate a unique short code")
	// ErrStoreUnavailable is returned when the backing store cannot be reached in time.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidURL is returned when an original URL is empty or is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrEmptyShortCode is returned when a short code parameter is missing.
	ErrEmptyShortCode = errors.New("empty short code")
)

// URL represents a shortened URL.
type URL struct {
	ID          uuid.UUID // ID is the unique identifier of the URL, assigned at creation.
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	URLStats              // URLStats contains statistics about the URL.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time // UpdatedAt is the timestamp when the URL was last updated.
}

// URLStats contains statistics related to a shortened URL.
type URLStats struct {
	AccessCount int64         // AccessCount is the number of times the shortened URL has been accessed.
	AccessLog   []AccessEvent // AccessLog holds one entry per access in the order they were recorded.
}

// AccessEvent is a single resolution of a short code.
type AccessEvent struct {
	IP         string
	AccessedAt time.Time
}

// ValidateOriginalURL reports whether rawURL can be stored as an original URL.
// Only absolute http and https URLs with a host are accepted.
func ValidateOriginalURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}
