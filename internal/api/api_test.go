package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/auth"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/config"
	"github.com/theuszinp/chatbot/internal/engine"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/types"
)

// nullTransport swallows outbound messages
type nullTransport struct{}

func (nullTransport) SendText(_, _ string) error                  { return nil }
func (nullTransport) SendContent(_ string, _ types.Content) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		ChatIdleTimeout:   20 * time.Minute,
		RatingTimeout:     5 * time.Minute,
		AvgServiceMinutes: 5,
		CloseCommand:      "close",
		ConfirmCommand:    "yes",
		DeclineCommand:    "no",
		MenuCommand:       "menu",
		TransferCommand:   "/transfer",
		CompanyName:       "CarSat Tracking",
	}
}

func newTestStack() (*engine.Engine, *cache.Registry, *queue.Manager, *cache.EventLog) {
	registry := cache.NewRegistry()
	queues := queue.NewManager(registry, zerolog.Nop())
	events := cache.NewEventLog()
	eng := engine.New(testConfig(), registry, queues, nullTransport{}, storage.NewNoopStore(), nil, events, zerolog.Nop())
	return eng, registry, queues, events
}

func asAdmin(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.Claims{
		Email: "admin@chatbot.local",
		Role:  "admin",
	})
	return req.WithContext(ctx)
}

func TestReceiverHandleMessage(t *testing.T) {
	eng, registry, _, _ := newTestStack()
	receiver := NewReceiver(eng, zerolog.Nop())

	body, _ := json.Marshal(types.InboundMessage{
		Sender:    "contact-1",
		PushName:  "Maria",
		Content:   types.Content{Text: "hello"},
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	receiver.HandleMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if _, ok := registry.Session("contact-1"); !ok {
		t.Error("expected a session to exist after the first message")
	}
}

func TestReceiverRejectsBadRequests(t *testing.T) {
	eng, _, _, _ := newTestStack()
	receiver := NewReceiver(eng, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/internal/message", nil)
	rec := httptest.NewRecorder()
	receiver.HandleMessage(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected 405, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/message", bytes.NewReader([]byte(`{"content":{"text":"hi"}}`)))
	rec = httptest.NewRecorder()
	receiver.HandleMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing sender: expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/message", bytes.NewReader([]byte("not json")))
	rec = httptest.NewRecorder()
	receiver.HandleMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}
}

func TestDashboardGetQueues(t *testing.T) {
	_, registry, queues, events := newTestStack()
	handler := NewDashboardHandler(registry, queues, storage.NewNoopStore(), events, zerolog.Nop())

	queues.Enqueue("contact-1", types.SectorSupport, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/queues", nil)
	rec := httptest.NewRecorder()
	handler.GetQueues(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var snapshots []types.QueueSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshots); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(snapshots) != len(types.AllSectors) {
		t.Fatalf("expected %d snapshots, got %d", len(types.AllSectors), len(snapshots))
	}

	found := false
	for _, s := range snapshots {
		if s.Sector == types.SectorSupport && s.WaitingCount == 1 {
			found = true
		}
	}
	if !found {
		t.Error("expected the support queue to report one waiting contact")
	}
}

func TestDashboardHistoryEmpty(t *testing.T) {
	_, registry, queues, events := newTestStack()
	handler := NewDashboardHandler(registry, queues, storage.NewNoopStore(), events, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/history?date=2025-06-02", nil)
	rec := httptest.NewRecorder()
	handler.GetHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var records []types.ServiceRecordItem
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("expected a JSON array, got %q", rec.Body.String())
	}
	if len(records) != 0 {
		t.Errorf("expected empty history, got %d records", len(records))
	}
}

func TestDashboardServiceByCodeNotFound(t *testing.T) {
	_, registry, queues, events := newTestStack()
	handler := NewDashboardHandler(registry, queues, storage.NewNoopStore(), events, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/dashboard/history/{code}", handler.GetServiceByCode)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/history/ATD-000042-2025", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/queues/wipe", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("no claims: expected 403, got %d", rec.Code)
	}

	viewer := context.WithValue(req.Context(), auth.UserContextKey, &auth.Claims{Role: "viewer"})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req.WithContext(viewer))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer: expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, asAdmin(req))
	if rec.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", rec.Code)
	}
}

func TestAdminUpsertAttendant(t *testing.T) {
	eng, registry, _, _ := newTestStack()
	admin := NewAdminHandler(eng, storage.NewNoopStore(), zerolog.Nop())

	body, _ := json.Marshal(types.Attendant{ID: "att-1", Name: "Ana", Sector: types.SectorSupport})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/attendants", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	admin.UpsertAttendant(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if _, ok := registry.Attendant("att-1"); !ok {
		t.Error("expected attendant in the roster")
	}
}

func TestAdminUpsertAttendantRejectsUnknownSector(t *testing.T) {
	eng, _, _, _ := newTestStack()
	admin := NewAdminHandler(eng, storage.NewNoopStore(), zerolog.Nop())

	body := []byte(`{"id":"att-1","name":"Ana","sector":"9"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/admin/attendants", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	admin.UpsertAttendant(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAdminForceCloseUnknownContact(t *testing.T) {
	eng, _, _, _ := newTestStack()
	admin := NewAdminHandler(eng, storage.NewNoopStore(), zerolog.Nop())

	body := []byte(`{"contact":"nobody"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/sessions/close", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	admin.ForceClose(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestAdminWipeQueues(t *testing.T) {
	eng, _, queues, _ := newTestStack()
	admin := NewAdminHandler(eng, storage.NewNoopStore(), zerolog.Nop())

	queues.Enqueue("contact-1", types.SectorSupport, time.Now())
	queues.Enqueue("contact-2", types.SectorSales, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/queues/wipe", nil)
	rec := httptest.NewRecorder()
	admin.WipeQueues(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["cleared"] != float64(2) {
		t.Errorf("expected 2 cleared, got %v", response["cleared"])
	}
	if queues.Position("contact-1", types.SectorSupport) != 0 {
		t.Error("expected queues to be empty after wipe")
	}
}
