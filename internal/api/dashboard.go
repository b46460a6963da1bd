package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/alerts"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/types"
)

// DashboardHandler serves the read-only views of the dashboard API
type DashboardHandler struct {
	registry *cache.Registry
	queues   *queue.Manager
	store    storage.Store
	events   *cache.EventLog
	logger   zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(registry *cache.Registry, queues *queue.Manager, store storage.Store, events *cache.EventLog, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		registry: registry,
		queues:   queues,
		store:    store,
		events:   events,
		logger:   logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GetSessions returns all sessions
func (h *DashboardHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Sessions())
}

// GetAttendants returns the attendant roster with busy flags
func (h *DashboardHandler) GetAttendants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Attendants())
}

// GetQueues returns per-sector queue snapshots with alerts applied
func (h *DashboardHandler) GetQueues(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	snapshots := make([]types.QueueSnapshot, 0, len(types.AllSectors))
	for _, sector := range types.AllSectors {
		snapshots = append(snapshots, h.queues.Snapshot(sector, now))
	}
	alerts.CheckQueueAlerts(snapshots)
	writeJSON(w, http.StatusOK, snapshots)
}

// GetOpenServices returns the currently open service records
func (h *DashboardHandler) GetOpenServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.OpenServices())
}

// GetHistory returns closed service records for a date (default today)
func (h *DashboardHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().Format("2006-01-02")
	}

	records, err := h.store.GetServiceRecords(dateKey)
	if err != nil {
		h.logger.Error().Err(err).Str("date", dateKey).Msg("failed to load service records")
		http.Error(w, `{"error":"failed to load history"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []types.ServiceRecordItem{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetServiceByCode looks up one closed service record by its code
func (h *DashboardHandler) GetServiceByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().Format("2006-01-02")
	}

	record, err := h.store.FindServiceRecordByCode(dateKey, code)
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("failed to look up service record")
		http.Error(w, `{"error":"failed to look up record"}`, http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, `{"error":"record not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetEvaluations returns an attendant's ratings
func (h *DashboardHandler) GetEvaluations(w http.ResponseWriter, r *http.Request) {
	attendantID := chi.URLParam(r, "id")

	evals, err := h.store.GetEvaluationsByAttendant(attendantID)
	if err != nil {
		h.logger.Error().Err(err).Str("attendant", attendantID).Msg("failed to load evaluations")
		http.Error(w, `{"error":"failed to load evaluations"}`, http.StatusInternalServerError)
		return
	}
	if evals == nil {
		evals = []types.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

// GetEvents returns the most recent engine events, newest first
func (h *DashboardHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, h.events.Recent(limit))
}
