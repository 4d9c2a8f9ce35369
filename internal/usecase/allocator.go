package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

// DefaultMaxAttempts is the number of candidates tried before allocation gives up.
const DefaultMaxAttempts = 10

type codeGenerator interface {
	Generate(length int) (string, error)
}

type shortCodeLookup interface {
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
}

// Allocator finds short codes that are not used by any stored URL.
//
// The lookup is only a first filter: two allocations can still pick the same
// candidate concurrently, and the unique index on short codes rejects the
// second Save.
type Allocator struct {
	gen         codeGenerator
	lookup      shortCodeLookup
	length      int
	maxAttempts int
	reserved    map[string]struct{}
}

func NewAllocator(lookup shortCodeLookup, gen codeGenerator, length, maxAttempts int, reserved ...string) *Allocator {
	if length <= 0 {
		length = DefaultShortCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	a := &Allocator{
		gen:         gen,
		lookup:      lookup,
		length:      length,
		maxAttempts: maxAttempts,
		reserved:    make(map[string]struct{}, len(reserved)),
	}
	for _, code := range reserved {
		a.reserved[code] = struct{}{}
	}

	return a
}

func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	const op = "usecase.Allocator.Allocate"

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.gen.Generate(a.length)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		if _, ok := a.reserved[code]; ok {
			continue
		}

		_, err = a.lookup.RetrieveByShortCode(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, entity.ErrURLNotFound) {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}

		metrics.AllocationAttempts.Observe(float64(attempt))
		return code, nil
	}

	return "", fmt.Errorf("%s: %d attempts: %w", op, a.maxAttempts, entity.ErrAllocationExhausted)
}
