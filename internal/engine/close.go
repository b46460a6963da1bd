package engine

import (
	"time"

	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/types"
)

// Close ends a contact's service episode. Manual closes move the
// session to the rating stage; timeout closes reset it straight to
// idle. The stage check and the transition are one conditional update,
// so of two interleaved triggers exactly one wins and runs the side
// effects; the loser finds the session already out of a connectable
// stage and no-ops. Reports whether this call ended the episode.
func (e *Engine) Close(contact string, manual bool, now time.Time) bool {
	var attendantID string
	var sector types.Sector

	_, applied := e.registry.UpdateSession(contact, func(s *types.Session) bool {
		if !s.Stage.Connectable() {
			return false
		}
		attendantID = s.Attendant
		sector = s.Sector
		if manual {
			s.Stage = types.StageAwaitingRating
		} else {
			s.Stage = types.StageIdle
			s.Sector = ""
		}
		s.Attendant = ""
		s.Pending = ""
		s.LastActivity = now
		return true
	})
	if !applied {
		return false
	}

	e.queues.Remove(contact)

	record, closed := e.registry.CloseService(contact, now)

	if manual {
		e.sendText(contact, ratingPromptText(record.Code), now)
	} else {
		e.sendText(contact, idleClosedText(), now)
	}

	reason := "timeout"
	if manual {
		reason = "manual"
	}

	if closed {
		go func() {
			if err := e.store.SaveServiceRecord(record.Item()); err != nil {
				e.logger.Error().Err(err).Str("code", record.Code).Msg("failed to save service record")
			}
		}()

		metrics.Get().RecordClose()
		event := types.NewEvent(types.EventServiceClosed, now)
		event.Contact = contact
		event.Sector = string(sector)
		event.Attendant = attendantID
		event.Code = record.Code
		event.Details = reason
		e.publish(event)
	}

	e.logger.Info().
		Str("contact", contact).
		Str("sector", sector.Name()).
		Str("attendant", attendantID).
		Str("code", record.Code).
		Str("reason", reason).
		Msg("service closed")

	if attendantID == "" {
		return true
	}
	if e.registry.ReleaseAttendant(attendantID) {
		e.sendText(attendantID, "Service with "+contact+" closed ("+reason+").", now)
		// Backfill the attendant from the sector queue right away instead
		// of waiting for the next tick
		e.matchAndNotify(sector, now)
	}
	return true
}
