// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// maxRangeDays caps a single usage report's window.
const maxRangeDays = 366

// UsageAggregator is the reporting read path consumed by the handlers.
type UsageAggregator interface {
	AggregateUsage(ctx context.Context, userID string, start, end time.Time) (model.UsageReport, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	usage  UsageAggregator
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(usage UsageAggregator, logger *slog.Logger) http.Handler {
	h := &Handler{
		usage:  usage,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{userID}/usage", h.getUsage)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getUsage returns aggregated usage statistics for a user.
// GET /v1/users/{userID}/usage?start=2024-01-01&end=2024-01-31
func (h *Handler) getUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	start, err := parseDateParam(r, "start")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'start' parameter. Expected YYYY-MM-DD.")
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'end' parameter. Expected YYYY-MM-DD.")
		return
	}
	if end.Before(start) {
		respondWithError(w, http.StatusBadRequest, "'end' must not be before 'start'.")
		return
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		respondWithError(w, http.StatusBadRequest, "Date range too large. Maximum is 366 days.")
		return
	}

	report, err := h.usage.AggregateUsage(r.Context(), userID, start, end)
	if err != nil {
		h.logger.Error("Failed to aggregate usage", "user", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	return time.Parse("2006-01-02", r.URL.Query().Get(name))
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
