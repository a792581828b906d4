package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/armorclaw/license-server/internal/cache"
)

// pinger is satisfied by *postgres.DB (embeds *sql.DB, which has
// PingContext).
type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandlers implements the unauthenticated diagnostic routes,
// extending handleHealth's shape with the cache and readiness checks this
// stack needs.
type HealthHandlers struct {
	db    pinger
	cache *cache.Client
}

func NewHealthHandlers(db pinger, cacheClient *cache.Client) *HealthHandlers {
	return &HealthHandlers{db: db, cache: cacheClient}
}

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandlers) HealthDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandlers) HealthCache(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.cache == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	if err := h.cache.Ping(ctx); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
