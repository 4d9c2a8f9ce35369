package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// urlRequest represents the structure for a request to shorten or modify a URL.
type urlRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// urlResponse represents a stored URL without its access statistics.
type urlResponse struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"url"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toURLResponse(baseURL string, url *entity.URL) urlResponse {
	return urlResponse{
		ID:          url.ID.String(),
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
		ShortURL:    shortURL(baseURL, url.ShortCode),
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

func toURLListResponse(baseURL string, urls []*entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for _, url := range urls {
		resp = append(resp, toURLResponse(baseURL, url))
	}
	return resp
}

func shortURL(baseURL, shortCode string) string {
	return baseURL + "/" + shortCode
}

// urlStatsResponse represents a stored URL together with its access statistics.
type urlStatsResponse struct {
	urlResponse
	AccessCount int64         `json:"accessCount"`
	AccessLog   []accessEvent `json:"accessLog"`
}

type accessEvent struct {
	IP         string    `json:"ip"`
	AccessedAt time.Time `json:"accessedAt"`
}

func toURLStatsResponse(baseURL string, url *entity.URL) urlStatsResponse {
	log := make([]accessEvent, 0, len(url.AccessLog))
	for _, e := range url.AccessLog {
		log = append(log, accessEvent{
			IP:         e.IP,
			AccessedAt: e.AccessedAt,
		})
	}

	return urlStatsResponse{
		urlResponse: toURLResponse(baseURL, url),
		AccessCount: url.AccessCount,
		AccessLog:   log,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	invalidURLResponse = errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors: []validationError{{
			Field:   "url",
			Message: "invalid url",
		}},
	}

	emptyShortCodeResponse = errorResponse{
		Status:  statusError,
		Message: "short code is required",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url", "http_url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
