package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/engine"
	"github.com/theuszinp/chatbot/internal/types"
)

// Receiver handles inbound chat messages posted by the transport bridge
type Receiver struct {
	engine           *engine.Engine
	logger           zerolog.Logger
	messagesReceived int64
	lastReceived     time.Time
	mu               sync.RWMutex
}

// NewReceiver creates a new message receiver
func NewReceiver(eng *engine.Engine, logger zerolog.Logger) *Receiver {
	return &Receiver{
		engine: eng,
		logger: logger,
	}
}

// HandleMessage receives one inbound message and runs it through the
// engine synchronously, so the bridge gets backpressure on overload
func (r *Receiver) HandleMessage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg types.InboundMessage
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode inbound message")
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}
	if msg.Sender == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	r.engine.HandleInbound(msg)

	atomic.AddInt64(&r.messagesReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	// Log periodically
	count := atomic.LoadInt64(&r.messagesReceived)
	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Msg("inbound messages received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"messages_received": atomic.LoadInt64(&r.messagesReceived),
		"last_received":     lastReceived,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
