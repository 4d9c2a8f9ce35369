// Package rediscache decorates a URL repository with a read-through Redis cache
// for short code lookups. The cache never holds access statistics, and a failing
// cache only costs a trip to the underlying repository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

const keyPrefix = "shortlink:url:"

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

type cachedURL struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *cachedURL) toEntity() *entity.URL {
	return &entity.URL{
		ID:          c.ID,
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type URLRepository struct {
	next   urlRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewURLRepository(next urlRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *URLRepository {
	return &URLRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func key(shortCode string) string {
	return keyPrefix + shortCode
}

func (r *URLRepository) cacheError(op string, err error) {
	metrics.CacheErrorsTotal.Inc()
	r.logger.Warn("cache operation failed", slog.String("op", op), slog.Any("err", err))
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.rediscache.URLRepository.RetrieveByShortCode"

	data, err := r.client.Get(ctx, key(shortCode)).Bytes()
	switch {
	case err == nil:
		var c cachedURL
		if err := json.Unmarshal(data, &c); err == nil {
			metrics.CacheHitsTotal.Inc()
			return c.toEntity(), nil
		}
		r.cacheError(op, err)
	case errors.Is(err, redis.Nil):
		metrics.CacheMissesTotal.Inc()
	default:
		r.cacheError(op, err)
	}

	url, err := r.next.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.store(ctx, url)

	return url, nil
}

func (r *URLRepository) store(ctx context.Context, url *entity.URL) {
	const op = "adapter.repository.rediscache.URLRepository.store"

	data, err := json.Marshal(cachedURL{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	})
	if err != nil {
		r.cacheError(op, err)
		return
	}

	if err := r.client.Set(ctx, key(url.ShortCode), data, r.ttl).Err(); err != nil {
		r.cacheError(op, err)
	}
}

func (r *URLRepository) invalidate(ctx context.Context, shortCode string) {
	const op = "adapter.repository.rediscache.URLRepository.invalidate"

	if err := r.client.Del(ctx, key(shortCode)).Err(); err != nil {
		r.cacheError(op, err)
	}
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	return r.next.Save(ctx, shortCode, originalURL)
}

func (r *URLRepository) RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	return r.next.RetrieveByOriginalURL(ctx, originalURL)
}

func (r *URLRepository) RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error) {
	return r.next.RecordAccess(ctx, shortCode, ip, accessedAt)
}

func (r *URLRepository) RetrieveStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	return r.next.RetrieveStats(ctx, shortCode)
}

func (r *URLRepository) List(ctx context.Context) ([]*entity.URL, error) {
	return r.next.List(ctx)
}

func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	url, err := r.next.Update(ctx, shortCode, originalURL)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, shortCode)

	return url, nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	if err := r.next.Remove(ctx, shortCode); err != nil {
		return err
	}

	r.invalidate(ctx, shortCode)

	return nil
}
