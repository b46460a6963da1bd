package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Engine metrics
	MessagesReceivedTotal int64
	MatchesTotal          int64
	ClosesTotal           int64
	TimeoutsTotal         int64
	TransfersTotal        int64
	RatingsTotal          int64
	QueuePurgesTotal      int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Aggregation metrics
	SnapshotsBroadcastTotal int64
	AggregationErrorsTotal  int64
	lastAggregationMs       float64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordMessageReceived increments the inbound message counter
func (m *Metrics) RecordMessageReceived() {
	m.mu.Lock()
	m.MessagesReceivedTotal++
	m.mu.Unlock()
}

// RecordMatch increments the contact/attendant pairing counter
func (m *Metrics) RecordMatch() {
	m.mu.Lock()
	m.MatchesTotal++
	m.mu.Unlock()
}

// RecordClose increments the closed-service counter
func (m *Metrics) RecordClose() {
	m.mu.Lock()
	m.ClosesTotal++
	m.mu.Unlock()
}

// RecordTimeout increments the idle-timeout counter
func (m *Metrics) RecordTimeout() {
	m.mu.Lock()
	m.TimeoutsTotal++
	m.mu.Unlock()
}

// RecordTransfer increments the sector-transfer counter
func (m *Metrics) RecordTransfer() {
	m.mu.Lock()
	m.TransfersTotal++
	m.mu.Unlock()
}

// RecordRating increments the received-rating counter
func (m *Metrics) RecordRating() {
	m.mu.Lock()
	m.RatingsTotal++
	m.mu.Unlock()
}

// RecordQueuePurge increments the stale-queue-entry counter
func (m *Metrics) RecordQueuePurge() {
	m.mu.Lock()
	m.QueuePurgesTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordSnapshotBroadcast records one aggregation cycle
func (m *Metrics) RecordSnapshotBroadcast(duration time.Duration) {
	m.mu.Lock()
	m.SnapshotsBroadcastTotal++
	m.lastAggregationMs = float64(duration.Microseconds()) / 1000.0
	m.mu.Unlock()
}

// RecordAggregationError increments aggregation error counter
func (m *Metrics) RecordAggregationError() {
	m.mu.Lock()
	m.AggregationErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("chatbot_uptime_seconds", time.Since(m.startTime).Seconds())

		// Engine metrics
		write("chatbot_messages_received_total", m.MessagesReceivedTotal)
		write("chatbot_matches_total", m.MatchesTotal)
		write("chatbot_closes_total", m.ClosesTotal)
		write("chatbot_timeouts_total", m.TimeoutsTotal)
		write("chatbot_transfers_total", m.TransfersTotal)
		write("chatbot_ratings_total", m.RatingsTotal)
		write("chatbot_queue_purges_total", m.QueuePurgesTotal)

		// Calculate messages per second
		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("chatbot_messages_per_second", float64(m.MessagesReceivedTotal)/uptimeSeconds)
		}

		// WebSocket metrics
		write("chatbot_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("chatbot_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("chatbot_websocket_active_connections", m.activeConnections)
		write("chatbot_websocket_messages_total", m.WebSocketMessagesTotal)
		write("chatbot_websocket_errors_total", m.WebSocketErrorsTotal)

		// Aggregation metrics
		write("chatbot_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("chatbot_aggregation_errors_total", m.AggregationErrorsTotal)
		write("chatbot_last_aggregation_ms", m.lastAggregationMs)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("chatbot_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
