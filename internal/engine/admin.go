package engine

import (
	"fmt"
	"time"

	"github.com/theuszinp/chatbot/internal/types"
)

// Administrative operations exposed to the dashboard. They route
// through the same primitives as the chat-driven transitions so the
// engine invariants hold no matter who triggers a change.

// SetAttendantStatus force-sets an attendant's busy flag. Freeing an
// attendant immediately attempts a match for their sector.
func (e *Engine) SetAttendantStatus(id string, busy bool, now time.Time) error {
	attendant, ok := e.registry.Attendant(id)
	if !ok {
		return fmt.Errorf("unknown attendant %s", id)
	}
	if !e.registry.SetAttendantBusy(id, busy) {
		return fmt.Errorf("unknown attendant %s", id)
	}

	e.logger.Info().
		Str("attendant", id).
		Bool("busy", busy).
		Msg("attendant status changed by admin")

	if !busy {
		e.matchAndNotify(attendant.Sector, now)
	}
	return nil
}

// UpsertAttendant adds or updates a roster entry
func (e *Engine) UpsertAttendant(a types.Attendant, now time.Time) {
	e.registry.UpsertAttendant(a)
	e.logger.Info().
		Str("attendant", a.ID).
		Str("sector", a.Sector.Name()).
		Msg("attendant upserted")

	// A new free attendant may unblock the sector's queue
	e.matchAndNotify(a.Sector, now)
}

// RemoveAttendant deletes a roster entry. A session currently served
// by the attendant is force-closed first.
func (e *Engine) RemoveAttendant(id string, now time.Time) error {
	if session, ok := e.registry.SessionByAttendant(id); ok {
		e.Close(session.Contact, true, now)
	}
	if !e.registry.RemoveAttendant(id) {
		return fmt.Errorf("unknown attendant %s", id)
	}
	e.logger.Info().Str("attendant", id).Msg("attendant removed")
	return nil
}

// ForceClose ends a contact's service on behalf of an administrator
func (e *Engine) ForceClose(contact string, now time.Time) error {
	session, ok := e.registry.Session(contact)
	if !ok {
		return fmt.Errorf("unknown contact %s", contact)
	}
	if !session.Stage.Connectable() {
		return fmt.Errorf("contact %s has no active service", contact)
	}
	e.Close(contact, true, now)
	return nil
}

// ForceTransfer moves a contact to another sector's queue on behalf of
// an administrator, working for both queued and actively served
// sessions
func (e *Engine) ForceTransfer(contact string, target types.Sector, now time.Time) error {
	if !types.KnownSector(target) {
		return fmt.Errorf("unknown sector %s", target)
	}

	session, ok := e.registry.Session(contact)
	if !ok {
		return fmt.Errorf("unknown contact %s", contact)
	}
	if !session.Stage.Connectable() {
		return fmt.Errorf("contact %s has no active service", contact)
	}
	if session.Sector == target {
		return fmt.Errorf("contact %s is already in sector %s", contact, target)
	}

	// Dequeue before the session moves sectors so a concurrent match
	// attempt on the origin queue cannot pair the contact mid-transfer.
	// If the update below loses its race the entry stays gone, which is
	// what the winning transition would have done anyway.
	e.queues.Remove(contact)

	var attendantID string
	var origin types.Sector

	_, applied := e.registry.UpdateSession(contact, func(s *types.Session) bool {
		if !s.Stage.Connectable() {
			return false
		}
		attendantID = s.Attendant
		origin = s.Sector
		s.Stage = types.StageInService
		s.Sector = target
		s.Attendant = ""
		s.Pending = ""
		s.LastActivity = now
		return true
	})
	if !applied {
		return fmt.Errorf("contact %s changed state during transfer", contact)
	}

	if record, closed := e.registry.CloseService(contact, now); closed {
		go func() {
			if err := e.store.SaveServiceRecord(record.Item()); err != nil {
				e.logger.Error().Err(err).Str("code", record.Code).Msg("failed to save service record")
			}
		}()
	}
	if attendantID != "" {
		e.registry.ReleaseAttendant(attendantID)
	}

	e.queues.Enqueue(contact, target, now)

	event := types.NewEvent(types.EventTransferred, now)
	event.Contact = contact
	event.Sector = string(target)
	event.Details = "admin transfer from sector " + string(origin)
	e.publish(event)

	e.sendText(contact, transferContactText(target), now)

	e.matchAndNotify(target, now)
	if attendantID != "" {
		e.matchAndNotify(origin, now)
	}
	return nil
}

// ReopenSession puts a contact back into the queue of their last
// service's sector, undoing an accidental close
func (e *Engine) ReopenSession(contact string, now time.Time) error {
	session, ok := e.registry.Session(contact)
	if !ok {
		return fmt.Errorf("unknown contact %s", contact)
	}
	if session.Stage.Connectable() {
		return fmt.Errorf("contact %s already has an active service", contact)
	}

	record, ok := e.registry.LastService(contact)
	if !ok {
		return fmt.Errorf("contact %s has no service to reopen", contact)
	}

	_, applied := e.registry.UpdateSession(contact, func(s *types.Session) bool {
		if s.Stage.Connectable() {
			return false
		}
		s.Stage = types.StageInService
		s.Sector = record.Sector
		s.Attendant = ""
		s.Pending = ""
		s.LastActivity = now
		return true
	})
	if !applied {
		return fmt.Errorf("contact %s changed state during reopen", contact)
	}

	position, _ := e.queues.Enqueue(contact, record.Sector, now)
	e.sendText(contact, e.queuedText(record.Sector, position), now)

	e.logger.Info().
		Str("contact", contact).
		Str("sector", record.Sector.Name()).
		Msg("session reopened by admin")

	e.matchAndNotify(record.Sector, now)
	return nil
}

// WipeQueues clears every wait line (administrative reset)
func (e *Engine) WipeQueues() int {
	return e.queues.WipeAll()
}

// ResetMemory wipes all hot state: queues, sessions and attendants
func (e *Engine) ResetMemory() (sessions, attendants int) {
	e.queues.WipeAll()
	sessions, attendants = e.registry.Clear()
	e.logger.Warn().
		Int("sessions", sessions).
		Int("attendants", attendants).
		Msg("memory reset by admin")
	return sessions, attendants
}
