package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"kvstore/internal/apperrors"
	"kvstore/internal/coordinator"
	"kvstore/internal/pool"
)

// Handlers holds the dependencies shared by every route: the
// coordinator that sequences cache and backend operations, the pool
// used only for the readiness check, and a logger for anything that
// does not fit a response body.
type Handlers struct {
	coordinator *coordinator.Coordinator
	pool        *pool.Pool
	logger      *zap.Logger
}

// NewHandlers constructs the dispatcher's handler set.
func NewHandlers(c *coordinator.Coordinator, p *pool.Pool, logger *zap.Logger) *Handlers {
	return &Handlers{coordinator: c, pool: p, logger: logger}
}

// Create handles POST /create: form fields key, value. §6.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, apperrors.ClientMalformed("could not parse form body"))
		return
	}

	key := r.FormValue("key")
	value := r.FormValue("value")
	if key == "" || value == "" {
		h.writeError(w, apperrors.ClientMalformed("key and value are both required"))
		return
	}

	if err := h.coordinator.Write(r.Context(), key, []byte(value)); err != nil {
		h.writeError(w, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Successfully created/updated key: %s", key))
}

// Read handles GET /read?key=K. §6.
func (h *Handlers) Read(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, apperrors.ClientMalformed("key query parameter is required"))
		return
	}

	value, source, err := h.coordinator.Read(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	origin := "from DB"
	if source == coordinator.SourceCache {
		origin = "from cache"
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Value (%s): %s", origin, value))
}

// Delete handles DELETE /delete?key=K. §6.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, apperrors.ClientMalformed("key query parameter is required"))
		return
	}

	if err := h.coordinator.Delete(r.Context(), key); err != nil {
		h.writeError(w, err)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Successfully deleted key: %s", key))
}

// CacheStatus handles GET /cache-status, dumping the cache's
// point-in-time snapshot in the fixed text format of §6.
func (h *Handlers) CacheStatus(w http.ResponseWriter, r *http.Request) {
	state := h.coordinator.Snapshot()

	var b strings.Builder
	b.WriteString("--- Cache Status ---\n")
	fmt.Fprintf(&b, "Occupied: %d / %d\n\n", state.Size, state.MaxSize)
	b.WriteString("--- Items (MRU to LRU) ---\n")

	if len(state.Entries) == 0 {
		b.WriteString("(Cache is empty)\n")
	} else {
		for i, entry := range state.Entries {
			fmt.Fprintf(&b, "%d. Key: '%s', Value: '%s'\n", i+1, entry.Key, entry.Value)
		}
	}

	writeText(w, http.StatusOK, b.String())
}

// Healthz reports process liveness: if this handler runs at all, the
// process is alive.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// Readyz reports whether the pool established at least one session at
// boot; a pool with zero live sessions never recovers on its own; see
// pool.Pool.IsConnected.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.pool.IsConnected() {
		writeText(w, http.StatusServiceUnavailable, "not ready: no backend sessions established")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

// writeError maps err onto its declared HTTP status and a plain-text
// body carrying its message, falling back to 500 for anything that
// didn't come from apperrors.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		h.logger.Error("unmapped error reached the dispatcher", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeText(w, appErr.HTTPStatus(), appErr.Message)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
