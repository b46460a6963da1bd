package engine

import (
	"time"

	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/types"
)

// Sweep runs one scheduler tick: close idle chats, expire unanswered
// ratings and re-attempt matching for every sector. Timeouts are
// level-triggered against stored timestamps, so a late tick still
// closes everything that is overdue. The scan is a plain read; every
// transition re-validates its precondition inside the conditional
// update, so a session that moved on since the scan is skipped.
func (e *Engine) Sweep(now time.Time) {
	for _, session := range e.registry.SessionsByStage(types.StageInService, types.StageAwaitingClose) {
		if now.Sub(session.LastActivity) < e.cfg.ChatIdleTimeout {
			continue
		}
		if e.Close(session.Contact, false, now) {
			metrics.Get().RecordTimeout()
			e.logger.Info().
				Str("contact", session.Contact).
				Str("sector", session.Sector.Name()).
				Dur("idle", now.Sub(session.LastActivity)).
				Msg("chat idle timeout")
		}
	}

	for _, session := range e.registry.SessionsByStage(types.StageAwaitingRating) {
		if now.Sub(session.LastActivity) < e.cfg.RatingTimeout {
			continue
		}
		_, applied := e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
			if s.Stage != types.StageAwaitingRating || now.Sub(s.LastActivity) < e.cfg.RatingTimeout {
				return false
			}
			s.Stage = types.StageIdle
			s.Sector = ""
			s.Attendant = ""
			s.Pending = ""
			s.LastActivity = now
			return true
		})
		if !applied {
			// A rating landed between the scan and here
			continue
		}

		e.sendText(session.Contact, ratingExpiredText(), now)

		event := types.NewEvent(types.EventRatingExpired, now)
		event.Contact = session.Contact
		e.publish(event)

		e.logger.Info().
			Str("contact", session.Contact).
			Msg("rating window expired")
	}

	// One extra attempt per sector after a successful match drains short
	// bursts without waiting a full tick interval
	for _, sector := range types.AllSectors {
		if e.matchAndNotify(sector, now) {
			e.matchAndNotify(sector, now)
		}
	}
}
