// Package memory provides a process-local implementation of the URL repository.
// It is used for the "memory" storage mode and in tests. Every method holds the
// repository mutex for its whole duration, which makes RecordAccess atomic.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// record pairs a stored URL with its insertion sequence, which orders records
// whose CreatedAt values are equal.
type record struct {
	url *entity.URL
	seq uint64
}

// newerThan reports whether r was created after other.
func (r *record) newerThan(other *record) bool {
	if c := r.url.CreatedAt.Compare(other.url.CreatedAt); c != 0 {
		return c > 0
	}
	return r.seq > other.seq
}

type URLRepository struct {
	mu     sync.RWMutex
	now    func() time.Time
	seq    uint64
	byCode map[string]*record
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		now:    time.Now,
		byCode: make(map[string]*record),
	}
}

// clone copies the record so callers never share the access log backing array.
func clone(u *entity.URL, withLog bool) *entity.URL {
	c := *u
	c.AccessLog = nil
	if withLog {
		c.AccessLog = slices.Clone(u.AccessLog)
		if c.AccessLog == nil {
			c.AccessLog = []entity.AccessEvent{}
		}
	}
	return &c
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[shortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	now := r.now()
	r.seq++
	url := &entity.URL{
		ID:          uuid.New(),
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.byCode[shortCode] = &record{url: url, seq: r.seq}

	return clone(url, false), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(rec.url, false), nil
}

// RetrieveByOriginalURL returns the oldest record pointing at originalURL.
func (r *URLRepository) RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByOriginalURL"

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *record
	for _, rec := range r.byCode {
		if rec.url.OriginalURL != originalURL {
			continue
		}
		if found == nil || found.newerThan(rec) {
			found = rec
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(found.url, false), nil
}

func (r *URLRepository) RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RecordAccess"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	url := rec.url
	url.AccessCount++
	url.AccessLog = append(url.AccessLog, entity.AccessEvent{IP: ip, AccessedAt: accessedAt})
	url.UpdatedAt = r.now()

	return clone(url, false), nil
}

func (r *URLRepository) RetrieveStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveStats"

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(rec.url, true), nil
}

func (r *URLRepository) List(ctx context.Context) ([]*entity.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*record, 0, len(r.byCode))
	for _, rec := range r.byCode {
		recs = append(recs, rec)
	}

	slices.SortFunc(recs, func(a, b *record) int {
		switch {
		case a.newerThan(b):
			return -1
		case b.newerThan(a):
			return 1
		default:
			return 0
		}
	})

	urls := make([]*entity.URL, 0, len(recs))
	for _, rec := range recs {
		urls = append(urls, clone(rec.url, false))
	}

	return urls, nil
}

func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Update"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byCode[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	url := rec.url
	url.OriginalURL = originalURL
	url.UpdatedAt = r.now()

	return clone(url, false), nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.memory.URLRepository.Remove"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[shortCode]; !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	delete(r.byCode, shortCode)

	return nil
}
