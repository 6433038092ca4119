package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/msomdec/lifelink/internal/domain"
)

// healthKey is read on every health check; it never needs to exist.
const healthKey = "lifelink_healthz"

// HealthCheck reports whether the key-value store answers reads.
func HealthCheck(store domain.KeyValueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, _, err := store.Get(ctx, healthKey); err != nil {
			slog.Warn("health check: storage read failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "storage": "error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "ok"})
	}
}
