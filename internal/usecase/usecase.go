package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error)
	RetrieveStats(ctx context.Context, shortCode string) (*entity.URL, error)
	List(ctx context.Context) ([]*entity.URL, error)
	Update(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
}

type options struct {
	shortCodeLength int
	maxAttempts     int
	reserved        []string
	gen             codeGenerator
	now             func() time.Time
}

type Option func(*options)

func WithShortCodeLength(n int) Option {
	return func(o *options) {
		o.shortCodeLength = n
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithReservedCodes excludes codes that would collide with fixed routes.
func WithReservedCodes(codes ...string) Option {
	return func(o *options) {
		o.reserved = append(o.reserved, codes...)
	}
}

func WithGenerator(gen codeGenerator) Option {
	return func(o *options) {
		o.gen = gen
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

type URLUseCase struct {
	urlRepo   urlRepository
	allocator *Allocator
	resolver  *Resolver
}

func NewURLUseCase(urlRepo urlRepository, opts ...Option) *URLUseCase {
	o := options{
		shortCodeLength: DefaultShortCodeLength,
		maxAttempts:     DefaultMaxAttempts,
		gen:             NanoIDGenerator{},
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &URLUseCase{
		urlRepo:   urlRepo,
		allocator: NewAllocator(urlRepo, o.gen, o.shortCodeLength, o.maxAttempts, o.reserved...),
		resolver:  NewResolver(urlRepo, o.now),
	}
}

// ShortenURL returns the existing record for originalURL when there is one.
// Otherwise it allocates a new short code and stores it; created reports which
// of the two happened.
//
// A Save rejected by the short code unique constraint is retried with a fresh
// allocation once. Two concurrent requests for the same new URL may both pass
// the existing-record check and create two records.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (url *entity.URL, created bool, err error) {
	const op = "usecase.URLUseCase.ShortenURL"
	const maxSaves = 2

	defer func() {
		switch {
		case err != nil:
			metrics.URLCreationTotal.WithLabelValues(metrics.StatusError).Inc()
		case created:
			metrics.URLCreationTotal.WithLabelValues(metrics.StatusCreated).Inc()
		default:
			metrics.URLCreationTotal.WithLabelValues(metrics.StatusExisting).Inc()
		}
	}()

	if err := entity.ValidateOriginalURL(originalURL); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := uc.urlRepo.RetrieveByOriginalURL(ctx, originalURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, entity.ErrURLNotFound) {
		return nil, false, fmt.Errorf("%s: failed to look up original url: %w", op, err)
	}

	for i := 0; i < maxSaves; i++ {
		shortCode, err := uc.allocator.Allocate(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		url, err := uc.urlRepo.Save(ctx, shortCode, originalURL)
		if err == nil {
			return url, true, nil
		}
		if !errors.Is(err, entity.ErrShortCodeExists) {
			return nil, false, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}
	}

	return nil, false, fmt.Errorf("%s: %w: %w", op, entity.ErrAllocationExhausted, entity.ErrShortCodeExists)
}

// ResolveShortCode returns the record without touching its statistics.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	if shortCode == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrEmptyShortCode)
	}

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

// Redirect resolves shortCode to its destination and records one access from ip.
func (uc *URLUseCase) Redirect(ctx context.Context, shortCode, ip string) (string, error) {
	const op = "usecase.URLUseCase.Redirect"

	originalURL, err := uc.resolver.Resolve(ctx, shortCode, ip)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			metrics.URLAccessTotal.WithLabelValues(metrics.StatusNotFound).Inc()
		} else {
			metrics.URLAccessTotal.WithLabelValues(metrics.StatusError).Inc()
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.URLAccessTotal.WithLabelValues(metrics.StatusFound).Inc()

	return originalURL, nil
}

func (uc *URLUseCase) ModifyURL(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ModifyURL"

	if shortCode == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrEmptyShortCode)
	}
	if err := entity.ValidateOriginalURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := uc.urlRepo.Update(ctx, shortCode, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) DeactivateURL(ctx context.Context, shortCode string) error {
	const op = "usecase.URLUseCase.DeactivateURL"

	if shortCode == "" {
		return fmt.Errorf("%s: %w", op, entity.ErrEmptyShortCode)
	}

	err := uc.urlRepo.Remove(ctx, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	return nil
}

func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	if shortCode == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrEmptyShortCode)
	}

	url, err := uc.urlRepo.RetrieveStats(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) ListURLs(ctx context.Context) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}
