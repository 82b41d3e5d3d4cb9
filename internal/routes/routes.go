package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/services"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
	"github.com/CyberwizD/notification-ingest/pkg/metrics"
)

const maxBodyBytes = 64 << 10

type handler struct {
	pipeline *services.Pipeline
	logger   *slog.Logger
}

// NewRouter wires the local surface the native shell and navigation layer talk to, plus
// health and metrics endpoints.
func NewRouter(pipeline *services.Pipeline, m *metrics.Metrics, started time.Time, l *slog.Logger) http.Handler {
	h := &handler{pipeline: pipeline, logger: l.With(logger.Component("http"))}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "notification ingest healthy",
			"meta": map[string]interface{}{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/navigation/consume", h.consume)
		r.Get("/navigation/pending", h.peek)
		r.Post("/attribution", h.attribution)
		r.Post("/local-events", h.localEvent)
		r.Post("/notifications/tap", h.tap)
		r.Post("/lifecycle", h.lifecycle)
		r.Post("/token/refresh", h.tokenRefresh)
	})
	return r
}

type targetResponse struct {
	ResourceID string            `json:"resource_id"`
	Kind       models.TargetKind `json:"kind"`
	Origin     models.Origin     `json:"origin"`
}

func (h *handler) consume(w http.ResponseWriter, r *http.Request) {
	target, ok := h.pipeline.Consume()
	writeTarget(w, target, ok)
}

func (h *handler) peek(w http.ResponseWriter, r *http.Request) {
	target, ok := h.pipeline.Pending.Peek()
	writeTarget(w, target, ok)
}

func (h *handler) attribution(w http.ResponseWriter, r *http.Request) {
	var cb models.AttributionCallback
	if !h.decode(w, r, "http.attribution", &cb) {
		return
	}
	_, routed := h.pipeline.Deeplinks.Handle(r.Context(), cb)
	writeJSON(w, http.StatusAccepted, map[string]bool{"routed": routed})
}

func (h *handler) localEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.LocalEvent
	if !h.decode(w, r, "http.local_event", &ev) {
		return
	}
	h.pipeline.Normalizer.HandleLocalEvent(r.Context(), ev)
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) tap(w http.ResponseWriter, r *http.Request) {
	var msg models.RemoteMessage
	if !h.decode(w, r, "http.tap", &msg) {
		return
	}
	inc := h.pipeline.Normalizer.HandleTap(r.Context(), msg)
	writeJSON(w, http.StatusAccepted, map[string]bool{"routed": inc.Routable()})
}

type lifecycleRequest struct {
	State string `json:"state"`
}

func (h *handler) lifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if !h.decode(w, r, "http.lifecycle", &req) {
		return
	}
	state, ok := models.ParseAppState(req.State)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown app state %q", req.State))
		return
	}
	h.pipeline.Lifecycle.Set(r.Context(), state)
	w.WriteHeader(http.StatusNoContent)
}

type tokenRefreshRequest struct {
	Token string `json:"token"`
}

func (h *handler) tokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRefreshRequest
	if !h.decode(w, r, "http.token_refresh", &req) {
		return
	}
	if !h.pipeline.Tokens.HandleRefresh(r.Context(), req.Token) {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.pipeline.Reporter().Report(r.Context(), op, services.ErrMalformedPayload, err)
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (h *handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		h.logger.DebugContext(r.Context(), "request served",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func writeTarget(w http.ResponseWriter, target models.PendingTarget, ok bool) {
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, targetResponse{
		ResourceID: target.ResourceID,
		Kind:       target.Kind,
		Origin:     target.Origin,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}
