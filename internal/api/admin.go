package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/auth"
	"github.com/theuszinp/chatbot/internal/engine"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/types"
)

// AdminHandler exposes the write operations of the dashboard: roster
// management, forced session transitions and state resets. Everything
// routes through the engine so the matching invariants hold.
type AdminHandler struct {
	engine *engine.Engine
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(eng *engine.Engine, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		engine: eng,
		store:  store,
		logger: logger,
	}
}

// RequireAdmin middleware allows only the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSupervisorOrAdmin middleware allows supervisor and admin roles
func RequireSupervisorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "supervisor") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"supervisor or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UpsertAttendant creates or updates a roster entry
func (h *AdminHandler) UpsertAttendant(w http.ResponseWriter, r *http.Request) {
	var attendant types.Attendant
	if err := json.NewDecoder(r.Body).Decode(&attendant); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if attendant.ID == "" {
		http.Error(w, `{"error":"missing attendant id"}`, http.StatusBadRequest)
		return
	}
	if !types.KnownSector(attendant.Sector) {
		http.Error(w, `{"error":"unknown sector"}`, http.StatusBadRequest)
		return
	}

	h.engine.UpsertAttendant(attendant, time.Now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "attendant upserted",
		"id":      attendant.ID,
	})
}

// RemoveAttendant deletes a roster entry
func (h *AdminHandler) RemoveAttendant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.RemoveAttendant(id, time.Now()); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "attendant removed",
		"id":      id,
	})
}

// SetAttendantStatus force-sets an attendant's busy flag
func (h *AdminHandler) SetAttendantStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Busy bool `json:"busy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.SetAttendantStatus(id, req.Busy, time.Now()); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "status updated",
		"id":      id,
		"busy":    req.Busy,
	})
}

// ForceClose ends a contact's active service
func (h *AdminHandler) ForceClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contact string `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.ForceClose(req.Contact, time.Now()); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "service closed",
		"contact": req.Contact,
	})
}

// ForceTransfer moves a contact's session to another sector
func (h *AdminHandler) ForceTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contact string `json:"contact"`
		Sector  string `json:"sector"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.ForceTransfer(req.Contact, types.Sector(req.Sector), time.Now()); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "contact transferred",
		"contact": req.Contact,
		"sector":  req.Sector,
	})
}

// ReopenSession re-queues a contact in their last service's sector
func (h *AdminHandler) ReopenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contact string `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.ReopenSession(req.Contact, time.Now()); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "session reopened",
		"contact": req.Contact,
	})
}

// WipeQueues clears all wait lines
func (h *AdminHandler) WipeQueues(w http.ResponseWriter, r *http.Request) {
	cleared := h.engine.WipeQueues()

	h.logger.Info().Int("cleared", cleared).Msg("queues wiped via admin")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "queues wiped",
		"cleared": cleared,
	})
}

// ResetMemory clears all hot state (sessions, attendants, queues)
func (h *AdminHandler) ResetMemory(w http.ResponseWriter, r *http.Request) {
	sessions, attendants := h.engine.ResetMemory()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "memory reset",
		"sessionsCleared":   sessions,
		"attendantsCleared": attendants,
	})
}

// WipeDynamo truncates all history tables
func (h *AdminHandler) WipeDynamo(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate history tables")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("history tables truncated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "history tables truncated",
	})
}
