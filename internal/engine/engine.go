// Package engine implements the per-contact session state machine and
// the transfer/close workflow on top of the sector queues. All inbound
// traffic (contact messages, attendant messages, ticks) enters here;
// the engine decides transitions, asks the queue manager for matches
// and emits every outbound notification.
package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/config"
	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/transport"
	"github.com/theuszinp/chatbot/internal/types"
)

// Broadcaster pushes raw JSON frames to connected dashboards
type Broadcaster interface {
	Broadcast(message []byte)
}

// Engine drives all session transitions
type Engine struct {
	cfg       *config.Config
	registry  *cache.Registry
	queues    *queue.Manager
	transport transport.Transport
	store     storage.Store
	hub       Broadcaster
	events    *cache.EventLog
	logger    zerolog.Logger
}

// New creates an engine. hub may be nil when no dashboard feed is wired.
func New(cfg *config.Config, registry *cache.Registry, queues *queue.Manager,
	tr transport.Transport, store storage.Store, hub Broadcaster,
	events *cache.EventLog, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		queues:    queues,
		transport: tr,
		store:     store,
		hub:       hub,
		events:    events,
		logger:    logger,
	}
}

// HandleInbound dispatches one inbound message. The message timestamp
// is the transition time; a zero timestamp means "now".
func (e *Engine) HandleInbound(msg types.InboundMessage) {
	now := msg.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	metrics.Get().RecordMessageReceived()
	e.auditMessage(msg.Sender, types.DirectionInbound, msg.Content, msg.PushName, now)

	if e.registry.IsAttendant(msg.Sender) {
		e.handleAttendant(msg, now)
		return
	}
	e.handleContact(msg, now)
}

// command extracts the lowercased trimmed text of a message; media
// messages yield an empty command and are never token-matched
func command(content types.Content) string {
	if content.IsMedia() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(content.Text))
}

// sendText delivers a text notification. Failures are logged and
// abandoned; a failed send never rolls back a state change.
func (e *Engine) sendText(to, text string, now time.Time) {
	if err := e.transport.SendText(to, text); err != nil {
		e.logger.Error().Err(err).Str("to", to).Msg("failed to send message")
		return
	}
	e.auditMessage(to, types.DirectionOutbound, types.Content{Text: text}, "", now)
}

// forward relays text or media verbatim between the two parties of an
// active service
func (e *Engine) forward(to string, content types.Content, now time.Time) {
	if err := e.transport.SendContent(to, content); err != nil {
		e.logger.Error().Err(err).Str("to", to).Msg("failed to forward message")
		return
	}
	e.auditMessage(to, types.DirectionOutbound, content, "", now)
}

// auditMessage records a message in the history store off the hot path
func (e *Engine) auditMessage(contact, direction string, content types.Content, displayName string, now time.Time) {
	rec := types.MessageRecord{
		DateKey:     now.Format("2006-01-02"),
		ID:          uuid.New().String(),
		Contact:     contact,
		Direction:   direction,
		Body:        content.Preview(),
		DisplayName: displayName,
		Timestamp:   now.Format(time.RFC3339),
	}
	if content.IsMedia() {
		rec.MediaKind = string(content.Media.Kind)
		rec.MediaRef = content.Media.Ref
	}
	go func() {
		if err := e.store.SaveMessage(rec); err != nil {
			e.logger.Error().Err(err).Msg("failed to save message record")
		}
	}()
}

// publish appends an event to the recent-events ring, persists it and
// pushes it to connected dashboards
func (e *Engine) publish(event types.Event) {
	e.events.Add(event)

	go func() {
		if err := e.store.SaveEvent(event); err != nil {
			e.logger.Error().Err(err).Str("type", string(event.Type)).Msg("failed to save event")
		}
	}()

	if e.hub == nil {
		return
	}
	frame, err := json.Marshal(struct {
		Type  string      `json:"type"`
		Event types.Event `json:"event"`
	}{Type: "event", Event: event})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to marshal event frame")
		return
	}
	e.hub.Broadcast(frame)
}

// matchAndNotify runs one match attempt for the sector and sends the
// connection notices for a success. Purged stale entries are published
// as events. Returns whether a pairing happened.
func (e *Engine) matchAndNotify(sector types.Sector, now time.Time) bool {
	res := e.queues.TryMatch(sector, now)

	for _, contact := range res.Purged {
		metrics.Get().RecordQueuePurge()
		event := types.NewEvent(types.EventQueuePurged, now)
		event.Contact = contact
		event.Sector = string(sector)
		e.publish(event)
	}

	if !res.Matched() {
		return false
	}
	m := res.Match

	metrics.Get().RecordMatch()
	e.sendText(m.Contact, connectedText(m.Attendant.Name, sector, m.Record.Code), now)
	e.sendText(m.Attendant.ID, newServiceText(m.DisplayName, m.Contact, sector, m.Record.Code), now)

	event := types.NewEvent(types.EventServiceStarted, now)
	event.Contact = m.Contact
	event.Sector = string(sector)
	event.Attendant = m.Attendant.ID
	event.Code = m.Record.Code
	e.publish(event)
	return true
}
