package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"chat-relay/internal/hub"
	"chat-relay/internal/models"
)

const maxEmitBody = 1 << 20

// OriginChecker admits or rejects browser origins.
type OriginChecker interface {
	AuthorizeOrigin(origin string) bool
}

// Handler serves the HTTP side of the relay: the external emit channel,
// presence queries, health and stats.
type Handler struct {
	hub     *hub.Hub
	origins OriginChecker
	ws      http.Handler
	metrics http.Handler
}

// NewHandler wires the routes. ws and metrics may be nil.
func NewHandler(h *hub.Hub, origins OriginChecker, ws, metrics http.Handler) *Handler {
	return &Handler{
		hub:     h,
		origins: origins,
		ws:      ws,
		metrics: metrics,
	}
}

// Router returns a chi router with the standard middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.status)
	r.Get("/health", h.health)
	r.Get("/online-users", h.onlineUsers)
	r.Get("/api/online-users", h.onlineUsers)
	r.Get("/typing-users", h.typingUsers)
	r.Get("/stats", h.stats)
	r.Post("/emit", h.emit)

	if h.ws != nil {
		r.Get("/ws", h.ws.ServeHTTP)
	}
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{
		Status:      "ok",
		Message:     "Chat relay is running",
		OnlineUsers: len(h.hub.OnlineUsers()),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) onlineUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.OnlineUsers())
}

func (h *Handler) typingUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.TypingUsers())
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *Handler) emit(w http.ResponseWriter, r *http.Request) {
	var req models.EmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmitBody)).Decode(&req); err != nil {
		slog.Warn("[API] Invalid emit body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	err := h.hub.IngestExternal(r.Context(), req.Event, req.Data, req.Secret)
	switch {
	case errors.Is(err, hub.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, hub.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "Event name is required")
		return
	case err != nil:
		slog.Error("[API] Error emitting event", "event", req.Event, "error", err)
		writeError(w, http.StatusInternalServerError, "Error emitting event")
		return
	}

	writeJSON(w, http.StatusOK, models.EmitResponse{
		Success: true,
		Event:   req.Event,
		Data:    req.Data,
	})
}

// cors admits requests from allowed origins and rejects the rest before
// they reach a handler.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !h.origins.AuthorizeOrigin(origin) {
			slog.Warn("[API] Origin not allowed", "origin", origin, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "Not allowed by CORS")
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Debug("[API] Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
