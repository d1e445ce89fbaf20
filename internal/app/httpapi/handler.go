// Package httpapi exposes the backend's REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/nexahq/nexa-backend/internal/app"
	"github.com/nexahq/nexa-backend/internal/app/metrics"
	"github.com/nexahq/nexa-backend/internal/app/services/calls"
	"github.com/nexahq/nexa-backend/internal/app/storage"
	"github.com/nexahq/nexa-backend/internal/config"
	"github.com/nexahq/nexa-backend/internal/middleware"
	"github.com/nexahq/nexa-backend/internal/phone"
	"github.com/nexahq/nexa-backend/internal/vapi"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// Config controls the HTTP surface.
type Config struct {
	VapiSecret          string
	AdminJWTSecret      string
	RateLimits          config.RateLimits
	AllowedOrigins      []string
	MongoURIConfigured  bool
	RateCleanupInterval time.Duration
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app             *app.Application
	pinger          storage.Pinger
	logs            storage.CallLogStore
	mongoConfigured bool
	log             *logger.Logger
}

// NewHandler returns the fully wired router: tracing, metrics, CORS, per-route
// rate limits, webhook secret auth, and the JWT-gated admin surface.
func NewHandler(application *app.Application, pinger storage.Pinger, logs storage.CallLogStore, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:             application,
		pinger:          pinger,
		logs:            logs,
		mongoConfigured: cfg.MongoURIConfigured,
		log:             log,
	}

	r := mux.NewRouter()
	r.Use(middleware.Tracing(log))
	r.Use(middleware.Metrics())
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	limiter := middleware.NewRateLimiter(cfg.RateLimits, log)
	if cfg.RateCleanupInterval > 0 {
		limiter.StartCleanup(cfg.RateCleanupInterval, nil)
	}

	r.HandleFunc("/", h.home).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	secured := middleware.VapiSecret(cfg.VapiSecret, log)
	r.Handle("/vapi-webhook", limiter.Limit("webhook")(secured(http.HandlerFunc(h.webhook)))).Methods(http.MethodPost)
	r.Handle("/sync-vapi-calllogs", limiter.Limit("sync")(secured(http.HandlerFunc(h.sync)))).Methods(http.MethodGet)
	r.Handle("/user-context/{phone}", limiter.Limit("context")(http.HandlerFunc(h.userContext))).Methods(http.MethodGet)

	if cfg.AdminJWTSecret != "" {
		admin := r.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.AdminJWT([]byte(cfg.AdminJWTSecret), log))
		admin.HandleFunc("/call-logs", h.adminCallLogs).Methods(http.MethodGet)
		admin.HandleFunc("/users/{phone}", h.adminUser).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.NewCORS(origins).Handler(r)
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Welcome to Nexa Backend! Your AI-powered networking assistant is live.",
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	environment := map[string]any{
		"mongo_uri_configured": h.mongoConfigured,
		"server_time":          time.Now().UTC(),
	}
	database := map[string]any{"status": "connected"}

	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"status": "unhealthy",
				"error": map[string]any{
					"message": err.Error(),
					"type":    fmt.Sprintf("%T", err),
				},
				"environment": environment,
			})
			return
		}
		if infoer, ok := h.pinger.(serverInfoer); ok {
			if info, err := infoer.ServerInfo(r.Context()); err == nil {
				for k, v := range info {
					database[k] = v
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"database":    database,
		"environment": environment,
	})
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		metrics.RecordWebhook("rejected")
		writeError(w, http.StatusBadRequest, fmt.Errorf("no JSON received"))
		return
	}

	event := vapi.ParseWebhook(body)
	if event.Phone == "" {
		metrics.RecordWebhook("rejected")
		writeError(w, http.StatusBadRequest, fmt.Errorf("phone number not provided"))
		return
	}
	if event.Transcript == "" || event.Transcript == vapi.TranscriptNotAvailable {
		metrics.RecordWebhook("rejected")
		writeError(w, http.StatusBadRequest, fmt.Errorf("no transcript provided"))
		return
	}

	res, err := h.app.Calls.HandleTranscript(r.Context(), event.Phone, event.Transcript)
	switch {
	case errors.Is(err, calls.ErrDuplicateCall):
		metrics.RecordWebhook("duplicate")
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Duplicate call log detected. Skipping.",
		})
	case errors.Is(err, phone.ErrInvalidFormat):
		metrics.RecordWebhook("rejected")
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		metrics.RecordWebhook("failed")
		h.log.WithContext(r.Context()).WithError(err).Error("webhook processing failed")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("webhook processing failed"))
	default:
		metrics.RecordWebhook("processed")
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Call log stored and processed successfully!",
			"status":    "success",
			"nexa_id":   res.User.NexaID,
			"timestamp": res.Log.Timestamp,
		})
	}
}

func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	if h.app.Syncer == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("call log sync is not configured"))
		return
	}

	report, err := h.app.Syncer.Sync(r.Context())
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("manual call log sync failed")
		writeError(w, http.StatusBadGateway, fmt.Errorf("syncing call logs failed"))
		return
	}

	if report.Total == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"message": "No new call logs found!"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Synced %d new call logs successfully!", report.Processed),
		"total_logs": report.Total,
		"processed":  report.Processed,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
	})
}

func (h *handler) userContext(w http.ResponseWriter, r *http.Request) {
	rawPhone := mux.Vars(r)["phone"]

	payload, err := h.app.Users.Context(r.Context(), rawPhone)
	if errors.Is(err, phone.ErrInvalidFormat) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("user context lookup failed")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to load user context"))
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *handler) adminCallLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	entries, err := h.logs.ListRecentCallLogs(r.Context(), limit)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("admin call log listing failed")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to list call logs"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(entries),
		"call_logs": entries,
	})
}

func (h *handler) adminUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["phone"])
	switch {
	case errors.Is(err, phone.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("user not found"))
	case err != nil:
		h.log.WithContext(r.Context()).WithError(err).Error("admin user lookup failed")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to load user"))
	default:
		writeJSON(w, http.StatusOK, u)
	}
}

// serverInfoer is implemented by the Mongo store.
type serverInfoer interface {
	ServerInfo(ctx context.Context) (map[string]string, error)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Errorf("resource not found"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error":     err.Error(),
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
