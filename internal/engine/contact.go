package engine

import (
	"strconv"
	"time"

	"github.com/theuszinp/chatbot/internal/hours"
	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/types"
)

// handleContact dispatches a contact message against the session stage
func (e *Engine) handleContact(msg types.InboundMessage, now time.Time) {
	session := e.registry.EnsureSession(msg.Sender, msg.PushName, now)

	switch session.Stage {
	case types.StageIdle:
		e.contactIdle(session, msg, now)
	case types.StageInService:
		e.contactInService(session, msg, now)
	case types.StageAwaitingClose:
		e.contactAwaitingClose(session, msg, now)
	case types.StageAwaitingRating:
		e.contactRating(session, msg, now)
	}
}

// contactIdle handles sector selection and re-shows the menu on
// anything else
func (e *Engine) contactIdle(session types.Session, msg types.InboundMessage, now time.Time) {
	text := command(msg.Content)

	sector, valid := types.ValidSector(text)
	if !valid {
		e.sendText(session.Contact, e.menuText(session.DisplayName), now)
		return
	}

	if !hours.IsOpen(sector, now) {
		e.sendText(session.Contact, closedSectorText(sector), now)
		e.sendText(session.Contact, e.menuText(session.DisplayName), now)
		return
	}

	_, applied := e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
		if s.Stage != types.StageIdle {
			return false
		}
		s.Stage = types.StageInService
		s.Sector = sector
		s.LastActivity = now
		return true
	})
	if !applied {
		// Another trigger moved the session first; re-dispatch not needed,
		// the contact's next message lands in the new stage.
		return
	}

	position, added := e.queues.Enqueue(session.Contact, sector, now)
	if !added && position > 0 {
		// Already waiting somewhere; just repeat the position
		e.sendText(session.Contact, e.queuedText(sector, position), now)
		return
	}

	event := types.NewEvent(types.EventQueueJoined, now)
	event.Contact = session.Contact
	event.Sector = string(sector)
	e.publish(event)

	e.logger.Info().
		Str("contact", session.Contact).
		Str("sector", sector.Name()).
		Int("position", position).
		Msg("contact entered sector queue")

	// Immediate match attempt; if this contact got paired the connection
	// notice already went out, otherwise report the queue position
	e.matchAndNotify(sector, now)
	if pos := e.queues.Position(session.Contact, sector); pos > 0 {
		e.sendText(session.Contact, e.queuedText(sector, pos), now)
	}
}

// contactInService forwards messages to the attendant, or reports the
// queue position while no attendant is assigned yet
func (e *Engine) contactInService(session types.Session, msg types.InboundMessage, now time.Time) {
	if session.Attendant == "" {
		// Still queued; selecting a sector again or any other message
		// repeats the position instead of duplicating the entry
		if pos := e.queues.Position(session.Contact, session.Sector); pos > 0 {
			e.sendText(session.Contact, e.queuedText(session.Sector, pos), now)
			return
		}
		// Queue entry lost (wipe or crash); re-enqueue transparently
		pos, _ := e.queues.Enqueue(session.Contact, session.Sector, now)
		e.sendText(session.Contact, e.queuedText(session.Sector, pos), now)
		return
	}

	text := command(msg.Content)
	if text == e.cfg.MenuCommand || text == e.cfg.CloseCommand {
		e.sendText(session.Contact, attendantMustCloseText(), now)
		return
	}

	e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
		s.LastActivity = now
		return true
	})
	e.forward(session.Attendant, contactLabel(session, msg.Content), now)
}

// contactAwaitingClose keeps forwarding to the attendant while the
// close confirmation is pending; a session stuck in this stage with no
// pending tag is inconsistent and self-heals back to the menu
func (e *Engine) contactAwaitingClose(session types.Session, msg types.InboundMessage, now time.Time) {
	if session.Pending == "" || session.Attendant == "" {
		e.registry.ResetSession(session.Contact, now)
		e.queues.Remove(session.Contact)
		event := types.NewEvent(types.EventSessionReset, now)
		event.Contact = session.Contact
		event.Details = "inconsistent close-confirmation state"
		e.publish(event)
		e.sendText(session.Contact, resetApologyText(), now)
		e.sendText(session.Contact, e.menuText(session.DisplayName), now)
		return
	}

	e.registry.UpdateSession(session.Contact, func(s *types.Session) bool {
		s.LastActivity = now
		return true
	})
	e.forward(session.Attendant, contactLabel(session, msg.Content), now)
}

// contactRating records a 1-5 score, accepts the menu token as an
// explicit cancel and re-prompts on anything else. The session leaves
// the rating stage through a conditional update before any side effect
// runs, so a concurrent expiry sweep and a rating never both fire.
func (e *Engine) contactRating(session types.Session, msg types.InboundMessage, now time.Time) {
	text := command(msg.Content)

	if text == e.cfg.MenuCommand {
		if _, applied := e.registry.UpdateSession(session.Contact, leaveRating(now)); !applied {
			return
		}
		e.sendText(session.Contact, e.menuText(session.DisplayName), now)
		return
	}

	score, err := strconv.Atoi(text)
	if err != nil || score < 1 || score > 5 {
		e.sendText(session.Contact, invalidRatingText(), now)
		return
	}

	if _, applied := e.registry.UpdateSession(session.Contact, leaveRating(now)); !applied {
		// The rating window expired under us; the expiry notice already
		// went out
		return
	}

	record, ok := e.registry.LastService(session.Contact)
	if ok {
		eval := types.Evaluation{
			Contact:   session.Contact,
			Attendant: record.Attendant,
			Sector:    string(record.Sector),
			Code:      record.Code,
			Score:     score,
			CreatedAt: now.Format(time.RFC3339),
		}
		go func() {
			if err := e.store.SaveEvaluation(eval); err != nil {
				e.logger.Error().Err(err).Str("code", eval.Code).Msg("failed to save evaluation")
			}
		}()

		metrics.Get().RecordRating()
		event := types.NewEvent(types.EventRatingReceived, now)
		event.Contact = session.Contact
		event.Attendant = record.Attendant
		event.Sector = string(record.Sector)
		event.Code = record.Code
		event.Details = strconv.Itoa(score)
		e.publish(event)

		e.logger.Info().
			Str("contact", session.Contact).
			Str("code", record.Code).
			Int("score", score).
			Msg("rating received")
	}

	e.sendText(session.Contact, thanksText(score), now)
	e.sendText(session.Contact, e.menuText(session.DisplayName), now)
}

// leaveRating returns the conditional update that moves a session from
// the rating stage back to idle, failing if the stage already changed
func leaveRating(now time.Time) func(*types.Session) bool {
	return func(s *types.Session) bool {
		if s.Stage != types.StageAwaitingRating {
			return false
		}
		s.Stage = types.StageIdle
		s.Sector = ""
		s.Attendant = ""
		s.Pending = ""
		s.LastActivity = now
		return true
	}
}

// contactLabel prefixes forwarded text with the contact's name so the
// attendant can tell conversations apart. Media passes through with
// its caption untouched.
func contactLabel(session types.Session, content types.Content) types.Content {
	if content.IsMedia() {
		return content
	}
	who := session.DisplayName
	if who == "" {
		who = session.Contact
	}
	return types.Content{Text: who + ": " + content.Text}
}
