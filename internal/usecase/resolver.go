package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type accessRecorder interface {
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error)
}

// Resolver turns a short code into its destination and records the access.
// A destination is only returned once the access has been recorded.
type Resolver struct {
	repo accessRecorder
	now  func() time.Time
}

func NewResolver(repo accessRecorder, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		repo: repo,
		now:  now,
	}
}

func (r *Resolver) Resolve(ctx context.Context, shortCode, ip string) (string, error) {
	const op = "usecase.Resolver.Resolve"

	if shortCode == "" {
		return "", fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	if _, err := r.repo.RetrieveByShortCode(ctx, shortCode); err != nil {
		return "", fmt.Errorf("%s: failed to look up short code: %w", op, err)
	}

	// The record may have been removed between the lookup and this call, in
	// which case RecordAccess reports ErrURLNotFound.
	url, err := r.repo.RecordAccess(ctx, shortCode, ip, r.now().UTC())
	if err != nil {
		return "", fmt.Errorf("%s: failed to record access: %w", op, err)
	}

	return url.OriginalURL, nil
}
