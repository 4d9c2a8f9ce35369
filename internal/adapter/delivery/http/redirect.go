package http

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type homePage struct {
	URLs []urlResponse
}

type notFoundPage struct {
	ShortCode string
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		httplog.LogEntrySetField(r.Context(), "template_err", slog.AnyValue(err))
	}
}

func (h *urlHandler) home(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListURLs(r.Context())
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		renderPage(w, r, http.StatusInternalServerError, "error.html", nil)
		return
	}

	renderPage(w, r, http.StatusOK, "home.html", homePage{
		URLs: toURLListResponse(h.baseURL, urls),
	})
}

// redirect sends the client to the original URL. The access is recorded
// before the response is written; a failure to record is a 500, not a redirect.
func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	originalURL, err := h.useCase.Redirect(r.Context(), shortCode, clientIP(r))
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			renderPage(w, r, http.StatusNotFound, "not_found.html", notFoundPage{ShortCode: shortCode})
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		renderPage(w, r, http.StatusInternalServerError, "error.html", nil)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}
