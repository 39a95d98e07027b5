// Package api provides HTTP handlers for the advisor API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/pm-advisor/internal/advisor"
	"github.com/go-chi/chi/v5"
)

// Handler serves the advice, weekly and conversation endpoints.
type Handler struct {
	svc    *advisor.Service
	limit  func(http.Handler) http.Handler
	logger *slog.Logger
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc *advisor.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// SetRateLimit installs middleware applied to every route that calls the
// language model.
func (h *Handler) SetRateLimit(mw func(http.Handler) http.Handler) {
	h.limit = mw
}

// RegisterRoutes mounts all endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Route("/task-assignment", func(r chi.Router) {
			r.Post("/initial-advice", h.InitialAdvice)
			r.Post("/confirmation-advice", h.ConfirmationAdvice)
			r.Post("/followup-advice", h.FollowupAdvice)
			r.Post("/project-analysis", h.ProjectAnalysis)
		})
		r.Post("/agent/analyze-weekly-progress", h.AnalyzeWeeklyProgress)
		r.Post("/weekly-goal/generate", h.GenerateWeeklyGoal)
		r.Post("/conversation/chat", h.Chat)
		r.Post("/conversation/send-message", h.SendMessage)
	})

	r.Post("/conversation/add-agent-message", h.AddAgentMessage)
	r.Get("/conversation/history", h.History)
	r.Get("/conversation/summary", h.Summary)
	r.Delete("/conversation/clear", h.Clear)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response in the {"detail": ...} shape.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}

// decodeJSON reads a JSON body into dst. On failure it writes the error
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		Error(w, http.StatusUnprocessableEntity, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// invalid writes a validation failure.
func invalid(w http.ResponseWriter, err error) {
	Error(w, http.StatusUnprocessableEntity, err.Error())
}
