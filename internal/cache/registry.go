package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/theuszinp/chatbot/internal/types"
)

// Registry is the single owner of all hot mutable state: sessions,
// attendants and open service records. Every read-then-write runs under
// the registry lock, so interleaved triggers (inbound messages, ticks,
// admin calls) observe compare-and-set semantics: the loser of a race
// sees stale state and no-ops instead of double-applying.
type Registry struct {
	sessions   map[string]*types.Session
	attendants map[string]*types.Attendant
	open       map[string]*types.ServiceRecord // contact -> open service record
	lastClosed map[string]*types.ServiceRecord // contact -> most recently closed record
	serviceSeq int64
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*types.Session),
		attendants: make(map[string]*types.Attendant),
		open:       make(map[string]*types.ServiceRecord),
		lastClosed: make(map[string]*types.ServiceRecord),
	}
}

// ---------------------------------------------------------- sessions

// Session returns a copy of the contact's session
func (r *Registry) Session(contact string) (types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[contact]
	if !ok {
		return types.Session{}, false
	}
	return *s, true
}

// EnsureSession returns the contact's session, creating an idle one on
// first contact. The display name is best-effort and refreshed whenever
// the transport supplies one.
func (r *Registry) EnsureSession(contact, displayName string, now time.Time) types.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[contact]
	if !ok {
		s = &types.Session{
			Contact:      contact,
			Stage:        types.StageIdle,
			LastActivity: now,
			DisplayName:  displayName,
		}
		r.sessions[contact] = s
	} else if displayName != "" {
		s.DisplayName = displayName
	}
	return *s
}

// UpdateSession applies fn to the contact's session under the registry
// lock. fn may return false to abort (stale precondition), in which
// case nothing is written. Returns the resulting session copy and
// whether the update was applied.
func (r *Registry) UpdateSession(contact string, fn func(*types.Session) bool) (types.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[contact]
	if !ok {
		return types.Session{}, false
	}
	if !fn(s) {
		return *s, false
	}
	return *s, true
}

// ResetSession returns the contact's session to idle, clearing sector,
// attendant and pending confirmation
func (r *Registry) ResetSession(contact string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[contact]
	if !ok {
		return
	}
	s.Stage = types.StageIdle
	s.Sector = ""
	s.Attendant = ""
	s.Pending = ""
	s.LastActivity = now
}

// Sessions returns copies of all sessions
func (r *Registry) Sessions() []types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// SessionsByStage returns copies of all sessions in any of the given stages
func (r *Registry) SessionsByStage(stages ...types.Stage) []types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Session, 0)
	for _, s := range r.sessions {
		for _, stage := range stages {
			if s.Stage == stage {
				out = append(out, *s)
				break
			}
		}
	}
	return out
}

// SessionByAttendant returns the session currently served by the given
// attendant, considering both the active-chat and the close-confirmation
// stage
func (r *Registry) SessionByAttendant(attendantID string) (types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.Attendant == attendantID && s.Stage.Connectable() {
			return *s, true
		}
	}
	return types.Session{}, false
}

// -------------------------------------------------------- attendants

// Attendant returns a copy of the attendant record
func (r *Registry) Attendant(id string) (types.Attendant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attendants[id]
	if !ok {
		return types.Attendant{}, false
	}
	return *a, true
}

// IsAttendant reports whether the sender id belongs to a registered attendant
func (r *Registry) IsAttendant(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.attendants[id]
	return ok
}

// UpsertAttendant creates or updates an attendant. The busy flag of an
// existing attendant is preserved; only the engine flips it.
func (r *Registry) UpsertAttendant(a types.Attendant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.attendants[a.ID]; ok {
		existing.Name = a.Name
		existing.Sector = a.Sector
		return
	}
	copy := a
	r.attendants[a.ID] = &copy
}

// RemoveAttendant deletes an attendant record
func (r *Registry) RemoveAttendant(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attendants[id]; !ok {
		return false
	}
	delete(r.attendants, id)
	return true
}

// ClaimAttendant atomically picks a free attendant in the sector and
// marks it busy. This is one of the two serialization points of the
// matching engine: an attendant already busy can never be claimed twice.
func (r *Registry) ClaimAttendant(sector types.Sector) (types.Attendant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.attendants {
		if a.Sector == sector && !a.Busy {
			a.Busy = true
			return *a, true
		}
	}
	return types.Attendant{}, false
}

// ReleaseAttendant marks a busy attendant free again. Returns false if
// the attendant is unknown or already free, so a duplicate release is a
// visible no-op.
func (r *Registry) ReleaseAttendant(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attendants[id]
	if !ok || !a.Busy {
		return false
	}
	a.Busy = false
	return true
}

// SetAttendantBusy force-sets the busy flag (administrative action)
func (r *Registry) SetAttendantBusy(id string, busy bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attendants[id]
	if !ok {
		return false
	}
	a.Busy = busy
	return true
}

// Attendants returns copies of all attendants
func (r *Registry) Attendants() []types.Attendant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Attendant, 0, len(r.attendants))
	for _, a := range r.attendants {
		out = append(out, *a)
	}
	return out
}

// AttendantsBySector returns copies of the sector's attendants
func (r *Registry) AttendantsBySector(sector types.Sector) []types.Attendant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Attendant, 0)
	for _, a := range r.attendants {
		if a.Sector == sector {
			out = append(out, *a)
		}
	}
	return out
}

// ----------------------------------------------------- service records

// OpenService opens a new service record for the contact with a freshly
// generated code. Fails if the contact already has an open record.
func (r *Registry) OpenService(contact string, sector types.Sector, attendant string, now time.Time) (types.ServiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[contact]; ok {
		return types.ServiceRecord{}, fmt.Errorf("service already open for contact %s", contact)
	}

	r.serviceSeq++
	rec := &types.ServiceRecord{
		Code:      fmt.Sprintf("ATD-%06d-%d", r.serviceSeq, now.Year()),
		Contact:   contact,
		Sector:    sector,
		Attendant: attendant,
		StartedAt: now,
	}
	r.open[contact] = rec
	return *rec, nil
}

// CloseService stamps the contact's open record with the end time and
// duration, moves it to the closed side and returns it. The second call
// for the same episode finds no open record and reports false.
func (r *Registry) CloseService(contact string, now time.Time) (types.ServiceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.open[contact]
	if !ok {
		return types.ServiceRecord{}, false
	}
	ended := now
	rec.EndedAt = &ended
	rec.DurationSecs = ended.Sub(rec.StartedAt).Seconds()
	delete(r.open, contact)
	r.lastClosed[contact] = rec
	return *rec, true
}

// OpenServiceFor returns a copy of the contact's open record
func (r *Registry) OpenServiceFor(contact string) (types.ServiceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.open[contact]
	if !ok {
		return types.ServiceRecord{}, false
	}
	return *rec, true
}

// LastService returns the contact's most recently closed record. Used
// for rating attribution and for quoting the service code in notices
// sent after closure.
func (r *Registry) LastService(contact string) (types.ServiceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.lastClosed[contact]
	if !ok {
		return types.ServiceRecord{}, false
	}
	return *rec, true
}

// ServiceCode returns the code of the contact's open record, falling
// back to the last closed one
func (r *Registry) ServiceCode(contact string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.open[contact]; ok {
		return rec.Code
	}
	if rec, ok := r.lastClosed[contact]; ok {
		return rec.Code
	}
	return ""
}

// OpenServices returns copies of all open records
func (r *Registry) OpenServices() []types.ServiceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ServiceRecord, 0, len(r.open))
	for _, rec := range r.open {
		out = append(out, *rec)
	}
	return out
}

// Clear wipes all sessions, attendants and service records, returning
// the number of sessions and attendants removed (administrative reset)
func (r *Registry) Clear() (sessions, attendants int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions = len(r.sessions)
	attendants = len(r.attendants)
	r.sessions = make(map[string]*types.Session)
	r.attendants = make(map[string]*types.Attendant)
	r.open = make(map[string]*types.ServiceRecord)
	r.lastClosed = make(map[string]*types.ServiceRecord)
	return sessions, attendants
}
