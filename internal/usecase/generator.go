package usecase

import (
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultShortCodeLength is the length of generated short codes when none is configured.
const DefaultShortCodeLength = 7

// ShortCodeAlphabet is the 62-symbol alphabet short codes are drawn from.
const ShortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var ErrInvalidShortCodeLength = errors.New("short code length must be positive")

// NanoIDGenerator draws every symbol uniformly from ShortCodeAlphabet using crypto/rand.
type NanoIDGenerator struct{}

func (NanoIDGenerator) Generate(length int) (string, error) {
	const op = "usecase.NanoIDGenerator.Generate"

	if length <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidShortCodeLength)
	}

	code, err := gonanoid.Generate(ShortCodeAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
