package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/clickfit/clickfit/internal/service"
)

// Pinger reports database reachability; *sqlx.DB satisfies it
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db           Pinger
	dbDriver     string
	userService  *service.UserService
	assetService *service.AssetService
}

func NewHealthHandler(db Pinger, dbDriver string, userService *service.UserService, assetService *service.AssetService) *HealthHandler {
	return &HealthHandler{
		db:           db,
		dbDriver:     dbDriver,
		userService:  userService,
		assetService: assetService,
	}
}

func (h *HealthHandler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.PingContext(ctx)
}

// Health answers 200 when the database is reachable and 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, database, code := "ok", "connected", http.StatusOK
	err := h.ping(r.Context())
	if err != nil {
		slog.Warn("health check: database unreachable", "error", err)
		status, database, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"success":   err == nil,
		"status":    status,
		"database":  database,
		"storage":   h.assetService.Driver(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) DBStatus(w http.ResponseWriter, r *http.Request) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	err := h.ping(r.Context())
	if err == nil {
		var count int
		count, err = h.userService.Count(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"connected": true,
				"database":  h.dbDriver,
				"userCount": count,
				"timestamp": timestamp,
			})
			return
		}
	}

	slog.Error("db status check failed", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"success":   false,
		"connected": false,
		"database":  h.dbDriver,
		"error":     "Database not connected",
		"timestamp": timestamp,
	})
}
