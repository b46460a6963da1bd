package engine

import (
	"strings"
	"time"

	"github.com/theuszinp/chatbot/internal/hours"
	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/types"
)

// handleAttendant dispatches an attendant message: command tokens for
// the close handshake and transfers, everything else forwarded to the
// contact being served
func (e *Engine) handleAttendant(msg types.InboundMessage, now time.Time) {
	session, ok := e.registry.SessionByAttendant(msg.Sender)
	if !ok {
		e.sendText(msg.Sender, noSessionText(), now)
		return
	}

	text := command(msg.Content)

	if session.Stage == types.StageAwaitingClose {
		e.attendantCloseHandshake(session, text, now)
		return
	}

	switch {
	case text == e.cfg.CloseCommand:
		e.attendantRequestClose(session, now)
	case strings.HasPrefix(text, e.cfg.TransferCommand+" "):
		target := strings.TrimSpace(strings.TrimPrefix(text, e.cfg.TransferCommand+" "))
		e.attendantTransfer(session, target, now)
	default:
		e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
			s.LastActivity = now
			return true
		})
		e.forward(session.Contact, msg.Content, now)
	}
}

// attendantRequestClose starts the two-party close handshake
func (e *Engine) attendantRequestClose(session types.Session, now time.Time) {
	_, applied := e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
		if s.Stage != types.StageInService || s.Attendant != session.Attendant {
			return false
		}
		s.Stage = types.StageAwaitingClose
		s.Pending = types.ConfirmCloseByAttendant
		s.LastActivity = now
		return true
	})
	if !applied {
		return
	}

	e.sendText(session.Contact, closeRequestContactText(), now)
	e.sendText(session.Attendant, e.closeRequestAttendantText(), now)
}

// attendantCloseHandshake resolves a pending close request: confirm
// closes the service, decline reverts to active chat, anything else
// re-prompts
func (e *Engine) attendantCloseHandshake(session types.Session, text string, now time.Time) {
	switch text {
	case e.cfg.ConfirmCommand:
		e.Close(session.Contact, true, now)
	case e.cfg.DeclineCommand:
		_, applied := e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
			if s.Stage != types.StageAwaitingClose {
				return false
			}
			s.Stage = types.StageInService
			s.Pending = ""
			s.LastActivity = now
			return true
		})
		if !applied {
			return
		}
		e.sendText(session.Contact, closeDeclinedText(), now)
		e.sendText(session.Attendant, closeDeclinedText(), now)
	default:
		e.sendText(session.Attendant, e.closeRequestAttendantText(), now)
	}
}

// attendantTransfer moves the session to another sector's queue. The
// current service record closes, the attendant frees up and both the
// target queue and the attendant's own sector get a match attempt.
func (e *Engine) attendantTransfer(session types.Session, targetCode string, now time.Time) {
	target, valid := types.ValidSector(targetCode)
	if !valid {
		e.sendText(session.Attendant, "Unknown sector code. Valid sectors: 1, 2, 3 or 4.", now)
		return
	}
	if target == session.Sector {
		e.sendText(session.Attendant, "The contact is already in this sector.", now)
		return
	}
	if !hours.IsOpen(target, now) {
		e.sendText(session.Attendant, closedSectorText(target), now)
		return
	}

	attendantID := session.Attendant
	origin := session.Sector

	_, applied := e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
		if s.Stage != types.StageInService || s.Attendant != attendantID {
			return false
		}
		s.Stage = types.StageInService
		s.Sector = target
		s.Attendant = ""
		s.Pending = ""
		s.LastActivity = now
		return true
	})
	if !applied {
		return
	}

	if record, closed := e.registry.CloseService(session.Contact, now); closed {
		go func() {
			if err := e.store.SaveServiceRecord(record.Item()); err != nil {
				e.logger.Error().Err(err).Str("code", record.Code).Msg("failed to save service record")
			}
		}()
	}
	e.registry.ReleaseAttendant(attendantID)

	e.queues.Enqueue(session.Contact, target, now)

	metrics.Get().RecordTransfer()
	event := types.NewEvent(types.EventTransferred, now)
	event.Contact = session.Contact
	event.Sector = string(target)
	event.Attendant = attendantID
	event.Details = "from sector " + string(origin)
	e.publish(event)

	e.logger.Info().
		Str("contact", session.Contact).
		Str("from", origin.Name()).
		Str("to", target.Name()).
		Str("attendant", attendantID).
		Msg("contact transferred")

	e.sendText(session.Contact, transferContactText(target), now)
	e.sendText(attendantID, "Transfer completed. The contact is now queued for "+target.Name()+".", now)

	// Backfill both sides: the target queue may pair immediately and the
	// freed attendant can pick up the next contact in the origin queue
	e.matchAndNotify(target, now)
	e.matchAndNotify(origin, now)

	if pos := e.queues.Position(session.Contact, target); pos > 0 {
		e.sendText(session.Contact, e.queuedText(target, pos), now)
	}
}
