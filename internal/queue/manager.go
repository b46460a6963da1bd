package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/types"
)

// Manager owns the per-sector wait lines and the matching engine that
// pairs queue heads with free attendants. All queue mutations run under
// the manager lock; the attendant busy flip and the session assignment
// are compare-and-set operations on the registry, so a trigger that
// loses a race observes stale state and no-ops instead of
// double-booking either side.
type Manager struct {
	queues   map[types.Sector]*sectorQueue
	registry *cache.Registry
	seq      uint64
	mu       sync.Mutex
	logger   zerolog.Logger
}

// NewManager creates a manager with one empty queue per sector
func NewManager(registry *cache.Registry, logger zerolog.Logger) *Manager {
	queues := make(map[types.Sector]*sectorQueue, len(types.AllSectors))
	for _, sector := range types.AllSectors {
		queues[sector] = newSectorQueue(sector)
	}
	return &Manager{
		queues:   queues,
		registry: registry,
		logger:   logger,
	}
}

// Match is a queue head paired with a claimed attendant and its freshly
// opened service record
type Match struct {
	Contact     string
	DisplayName string
	Attendant   types.Attendant
	Record      types.ServiceRecord
}

// MatchResult reports the outcome of one TryMatch call: at most one
// match, plus any stale entries purged while walking the queue head
type MatchResult struct {
	Match  *Match
	Purged []string
}

// Matched reports whether a pairing happened
func (r MatchResult) Matched() bool { return r.Match != nil }

// Enqueue adds the contact to the sector's wait line and returns its
// 1-based position. A contact already waiting anywhere is not added
// again; its existing position is returned with added=false.
func (m *Manager) Enqueue(contact string, sector types.Sector, now time.Time) (position int, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A contact appears in at most one queue entry across all sectors
	for _, q := range m.queues {
		if pos := q.position(contact); pos > 0 {
			return pos, false
		}
	}

	q, ok := m.queues[sector]
	if !ok {
		m.logger.Warn().Str("sector", string(sector)).Msg("unknown sector, ignoring enqueue")
		return 0, false
	}

	m.seq++
	q.push(Entry{
		Contact:    contact,
		Sector:     sector,
		Seq:        m.seq,
		EnqueuedAt: now,
	})

	m.logger.Debug().
		Str("contact", contact).
		Str("sector", sector.Name()).
		Int("queue_depth", len(q.entries)).
		Msg("contact enqueued")

	return len(q.entries), true
}

// Remove deletes the contact's queue entry wherever it is (abandon or
// transfer), reporting whether one existed
func (m *Manager) Remove(contact string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range m.queues {
		if q.remove(contact) {
			return true
		}
	}
	return false
}

// Position returns the contact's 1-based position in the sector's
// queue, or 0 if not waiting there
func (m *Manager) Position(contact string, sector types.Sector) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[sector]
	if !ok {
		return 0
	}
	return q.position(contact)
}

// Waiting returns the sector's queued contacts in FIFO order
func (m *Manager) Waiting(sector types.Sector) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[sector]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.Contact)
	}
	return out
}

// TryMatch pairs the sector's queue head with a free attendant. Safe to
// call from any trigger point; returns no match when the queue or the
// attendant pool is empty. Heads whose session is not in a connectable
// stage, is already assigned, or has moved to another sector are purged
// and the next head is tried. The loop is bounded because the queue
// strictly shrinks on every purge.
func (m *Manager) TryMatch(sector types.Sector, now time.Time) MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res MatchResult

	q, ok := m.queues[sector]
	if !ok {
		return res
	}

	for {
		head, ok := q.head()
		if !ok {
			return res
		}

		session, ok := m.registry.Session(head.Contact)
		if !ok || !session.Stage.Connectable() || session.Attendant != "" || session.Sector != sector {
			q.pop()
			res.Purged = append(res.Purged, head.Contact)
			m.logger.Warn().
				Str("contact", head.Contact).
				Str("sector", sector.Name()).
				Str("stage", string(session.Stage)).
				Msg("stale queue entry purged")
			continue
		}

		attendant, ok := m.registry.ClaimAttendant(sector)
		if !ok {
			return res
		}

		q.pop()

		session, applied := m.registry.UpdateSession(head.Contact, func(s *types.Session) bool {
			if !s.Stage.Connectable() || s.Attendant != "" || s.Sector != sector {
				return false
			}
			s.Stage = types.StageInService
			s.Attendant = attendant.ID
			s.Pending = ""
			s.LastActivity = now
			return true
		})
		if !applied {
			// Lost the race: another trigger changed the session between
			// the head check and the assignment. Give the attendant back
			// and move on to the next head.
			m.registry.ReleaseAttendant(attendant.ID)
			res.Purged = append(res.Purged, head.Contact)
			continue
		}

		record, err := m.registry.OpenService(head.Contact, sector, attendant.ID, now)
		if err != nil {
			// Stale open record from an interrupted episode; close it and
			// open the new one.
			m.registry.CloseService(head.Contact, now)
			record, _ = m.registry.OpenService(head.Contact, sector, attendant.ID, now)
		}

		m.logger.Info().
			Str("contact", head.Contact).
			Str("sector", sector.Name()).
			Str("attendant", attendant.ID).
			Str("code", record.Code).
			Float64("wait_secs", now.Sub(head.EnqueuedAt).Seconds()).
			Msg("contact matched to attendant")

		res.Match = &Match{
			Contact:     head.Contact,
			DisplayName: session.DisplayName,
			Attendant:   attendant,
			Record:      record,
		}
		return res
	}
}

// WipeAll clears every sector's wait line, returning the number of
// entries dropped (administrative reset)
func (m *Manager) WipeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, q := range m.queues {
		total += len(q.entries)
		q.entries = q.entries[:0]
	}
	m.logger.Info().Int("cleared", total).Msg("wiped all queues")
	return total
}

// Snapshot returns the sector's current queue state including the
// attendant pool breakdown
func (m *Manager) Snapshot(sector types.Sector, now time.Time) types.QueueSnapshot {
	m.mu.Lock()
	q := m.queues[sector]
	waiting := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		waiting = append(waiting, e.Contact)
	}
	longest := q.longestWaitSecs(now)
	m.mu.Unlock()

	free, busy := 0, 0
	for _, a := range m.registry.AttendantsBySector(sector) {
		if a.Busy {
			busy++
		} else {
			free++
		}
	}

	return types.QueueSnapshot{
		Sector:          sector,
		SectorName:      sector.Name(),
		Waiting:         waiting,
		WaitingCount:    len(waiting),
		LongestWaitSecs: longest,
		FreeAttendants:  free,
		BusyAttendants:  busy,
	}
}
