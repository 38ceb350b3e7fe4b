package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/modmail-relay-go/internal/config"
	apperrors "github.com/openclaw/modmail-relay-go/internal/errors"
	"github.com/openclaw/modmail-relay-go/internal/httputil"
	"github.com/openclaw/modmail-relay-go/internal/middleware"
)

const livenessBody = "Bot is running 24/7!"

// ConversationCounter reports the number of open tickets.
type ConversationCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler serves the liveness endpoint the host platform polls.
type HealthHandler struct {
	conversations ConversationCounter
	metrics       http.Handler
	startedAt     time.Time
	now           func() time.Time
}

func NewHealthHandler(conversations ConversationCounter, metricsHandler http.Handler) *HealthHandler {
	return &HealthHandler{
		conversations: conversations,
		metrics:       metricsHandler,
		startedAt:     time.Now(),
		now:           time.Now,
	}
}

func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.SecurityHeaders)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	return r
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(livenessBody))
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.conversations.Count(r.Context())
	if err != nil {
		httputil.WriteError(w, apperrors.Internal("conversation registry unavailable"))
		return
	}

	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"timestamp":           now.UnixMilli(),
		"uptimeSeconds":       int64(now.Sub(h.startedAt).Seconds()),
		"activeConversations": count,
	})
}
