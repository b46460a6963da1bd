package engine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/config"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/types"
)

// Monday 10:00, inside the sales window
var monday = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// Sunday, outside the sales window
var sunday = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type sentMessage struct {
	To   string
	Text string
}

// recorder captures outbound messages instead of delivering them
type recorder struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recorder) SendText(to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{To: to, Text: text})
	return nil
}

func (r *recorder) SendContent(to string, content types.Content) error {
	return r.SendText(to, content.Preview())
}

func (r *recorder) textsTo(to string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		if m.To == to {
			out = append(out, m.Text)
		}
	}
	return out
}

func (r *recorder) received(to, substr string) bool {
	for _, text := range r.textsTo(to) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		ChatIdleTimeout:   20 * time.Minute,
		RatingTimeout:     5 * time.Minute,
		TickInterval:      5 * time.Second,
		AvgServiceMinutes: 5,
		CloseCommand:      "close",
		ConfirmCommand:    "yes",
		DeclineCommand:    "no",
		MenuCommand:       "menu",
		TransferCommand:   "/transfer",
		CompanyName:       "CarSat Tracking",
	}
}

func newTestEngine() (*Engine, *cache.Registry, *queue.Manager, *recorder) {
	registry := cache.NewRegistry()
	queues := queue.NewManager(registry, zerolog.Nop())
	rec := &recorder{}
	e := New(testConfig(), registry, queues, rec, storage.NewNoopStore(), nil,
		cache.NewEventLog(), zerolog.Nop())
	return e, registry, queues, rec
}

func contactMsg(sender, text string, now time.Time) types.InboundMessage {
	return types.InboundMessage{
		Sender:    sender,
		Content:   types.Content{Text: text},
		Timestamp: now,
	}
}

// connect pairs a contact with a fresh attendant and returns the
// service code
func connect(t *testing.T, e *Engine, registry *cache.Registry, contact, attendantID string, sector types.Sector, now time.Time) string {
	t.Helper()
	registry.UpsertAttendant(types.Attendant{ID: attendantID, Name: "Agent " + attendantID, Sector: sector})
	e.HandleInbound(contactMsg(contact, string(sector), now))

	session, ok := registry.Session(contact)
	if !ok || session.Stage != types.StageInService || session.Attendant != attendantID {
		t.Fatalf("expected %s in service with %s, got %+v", contact, attendantID, session)
	}
	return registry.ServiceCode(contact)
}

func TestSectorSelectionOutsideBusinessHours(t *testing.T) {
	e, registry, queues, rec := newTestEngine()

	e.HandleInbound(contactMsg("contact-1", "2", sunday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageIdle {
		t.Errorf("expected Idle, got %s", session.Stage)
	}
	if queues.Position("contact-1", types.SectorSales) != 0 {
		t.Error("no queue entry may be created outside business hours")
	}
	if !rec.received("contact-1", "Monday to Friday") {
		t.Error("expected a business-hours notice")
	}
	if !rec.received("contact-1", "Choose the service") {
		t.Error("expected the menu to be re-shown")
	}
}

func TestSectorSelectionMatchesImmediately(t *testing.T) {
	e, registry, _, rec := newTestEngine()

	code := connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	if code != "ATD-000001-2025" {
		t.Errorf("unexpected service code %q", code)
	}
	if !rec.received("contact-1", code) {
		t.Error("contact must be notified with the service code")
	}
	if !rec.received("att-1", code) {
		t.Error("attendant must be notified with the same code")
	}
	attendant, _ := registry.Attendant("att-1")
	if !attendant.Busy {
		t.Error("matched attendant must be busy")
	}
}

func TestSectorSelectionQueuesWithoutAttendant(t *testing.T) {
	e, registry, queues, rec := newTestEngine()

	e.HandleInbound(contactMsg("contact-1", "1", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageInService || session.Attendant != "" {
		t.Fatalf("expected queued InService session, got %+v", session)
	}
	if pos := queues.Position("contact-1", types.SectorAdministrative); pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}
	if !rec.received("contact-1", "position 1") {
		t.Error("expected a queue position reply")
	}
	if !rec.received("contact-1", "5 minutes") {
		t.Error("expected the ETA estimate in the reply")
	}

	// An attendant frees up later; the next tick matches
	registry.UpsertAttendant(types.Attendant{ID: "att-1", Name: "Agent", Sector: types.SectorAdministrative})
	e.Sweep(monday.Add(30 * time.Second))

	session, _ = registry.Session("contact-1")
	if session.Attendant != "att-1" {
		t.Errorf("expected match on the next tick, got %+v", session)
	}
}

func TestCloseHandshakeDecline(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("att-1", "close", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageAwaitingClose || session.Pending != types.ConfirmCloseByAttendant {
		t.Fatalf("expected pending close confirmation, got %+v", session)
	}
	if !rec.received("contact-1", "requested to close") {
		t.Error("contact must see the close request")
	}
	if !rec.received("att-1", "Confirm closing") {
		t.Error("attendant must see the confirmation prompt")
	}

	e.HandleInbound(contactMsg("att-1", "no", monday))

	session, _ = registry.Session("contact-1")
	if session.Stage != types.StageInService || session.Pending != "" {
		t.Errorf("expected decline to revert to active service, got %+v", session)
	}
	if !rec.received("contact-1", "Closing cancelled") || !rec.received("att-1", "Closing cancelled") {
		t.Error("both parties must be told the service continues")
	}
}

func TestCloseHandshakeReprompt(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("att-1", "close", monday))
	e.HandleInbound(contactMsg("att-1", "maybe", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageAwaitingClose {
		t.Errorf("unexpected input must not resolve the handshake, got %s", session.Stage)
	}
	prompts := 0
	for _, text := range rec.textsTo("att-1") {
		if strings.Contains(text, "Confirm closing") {
			prompts++
		}
	}
	if prompts != 2 {
		t.Errorf("expected a re-prompt, saw %d prompts", prompts)
	}
}

func TestManualCloseAndRating(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	code := connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("att-1", "close", monday))
	e.HandleInbound(contactMsg("att-1", "yes", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageAwaitingRating || session.Attendant != "" {
		t.Fatalf("expected rating stage with no attendant, got %+v", session)
	}
	if !rec.received("contact-1", code) {
		t.Error("rating prompt must quote the service code")
	}
	attendant, _ := registry.Attendant("att-1")
	if attendant.Busy {
		t.Error("attendant must be freed on close")
	}

	e.HandleInbound(contactMsg("contact-1", "5", monday))

	session, _ = registry.Session("contact-1")
	if session.Stage != types.StageIdle || session.Sector != "" {
		t.Errorf("expected idle session after rating, got %+v", session)
	}
	if !rec.received("contact-1", "Thank you for your rating of 5") {
		t.Error("expected the thanks message")
	}
	if !rec.received("contact-1", "Choose the service") {
		t.Error("expected the menu after the rating")
	}

	found := false
	for _, event := range e.events.Recent(10) {
		if event.Type == types.EventRatingReceived && event.Code == code {
			found = true
		}
	}
	if !found {
		t.Error("expected a rating event tied to the service code")
	}
}

func TestInvalidRatingReprompts(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)
	e.HandleInbound(contactMsg("att-1", "close", monday))
	e.HandleInbound(contactMsg("att-1", "yes", monday))

	e.HandleInbound(contactMsg("contact-1", "great!", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageAwaitingRating {
		t.Errorf("invalid input must keep the rating stage, got %s", session.Stage)
	}
	if !rec.received("contact-1", "1 to 5") {
		t.Error("expected a rating re-prompt")
	}

	// The menu token cancels the rating
	e.HandleInbound(contactMsg("contact-1", "menu", monday))
	session, _ = registry.Session("contact-1")
	if session.Stage != types.StageIdle {
		t.Errorf("menu token must cancel the rating, got %s", session.Stage)
	}
}

func TestRatingExpiry(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)
	e.HandleInbound(contactMsg("att-1", "close", monday))
	e.HandleInbound(contactMsg("att-1", "yes", monday))

	e.Sweep(monday.Add(6 * time.Minute))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageIdle {
		t.Errorf("expected idle after rating expiry, got %s", session.Stage)
	}
	if !rec.received("contact-1", "rating period has expired") {
		t.Error("expected the expiry notice")
	}

	found := false
	for _, event := range e.events.Recent(10) {
		if event.Type == types.EventRatingReceived {
			found = true
		}
	}
	if found {
		t.Error("no evaluation may be recorded on expiry")
	}
}

func TestChatIdleTimeout(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	// Several missed ticks later, a single sweep still closes the chat
	e.Sweep(monday.Add(90 * time.Minute))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageIdle || session.Attendant != "" {
		t.Fatalf("expected idle session after timeout, got %+v", session)
	}
	attendant, _ := registry.Attendant("att-1")
	if attendant.Busy {
		t.Error("attendant must be freed by the timeout close")
	}
	if !rec.received("contact-1", "closed due to inactivity") {
		t.Error("expected the inactivity notice")
	}
}

func TestTimeoutCloseBackfillsFromQueue(t *testing.T) {
	e, registry, _, _ := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	// Second contact waits in the same sector
	e.HandleInbound(contactMsg("contact-2", "3", monday.Add(15*time.Minute)))

	// First chat times out; the freed attendant picks up the second
	e.Sweep(monday.Add(21 * time.Minute))

	session, _ := registry.Session("contact-2")
	if session.Attendant != "att-1" {
		t.Errorf("expected backfill match for the waiting contact, got %+v", session)
	}
}

func TestIdempotentClose(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.Close("contact-1", true, monday)
	sentAfterFirst := rec.count()
	closedEvents := 0
	for _, event := range e.events.Recent(20) {
		if event.Type == types.EventServiceClosed {
			closedEvents++
		}
	}

	e.Close("contact-1", true, monday)

	if rec.count() != sentAfterFirst {
		t.Error("second close must not send any notifications")
	}
	after := 0
	for _, event := range e.events.Recent(20) {
		if event.Type == types.EventServiceClosed {
			after++
		}
	}
	if after != closedEvents {
		t.Error("second close must not publish another close event")
	}
}

func TestTransferToAnotherSector(t *testing.T) {
	e, registry, queues, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("att-1", "/transfer 1", monday))

	session, _ := registry.Session("contact-1")
	if session.Sector != types.SectorAdministrative || session.Attendant != "" {
		t.Fatalf("expected contact queued in the target sector, got %+v", session)
	}
	if queues.Position("contact-1", types.SectorAdministrative) != 1 {
		t.Error("expected the contact at the head of the target queue")
	}
	attendant, _ := registry.Attendant("att-1")
	if attendant.Busy {
		t.Error("transfer must free the attendant")
	}
	if !rec.received("contact-1", "transferred to Administrative") {
		t.Error("contact must be told about the transfer")
	}
}

func TestTransferToSameSectorRejected(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("att-1", "/transfer 3", monday))

	session, _ := registry.Session("contact-1")
	if session.Attendant != "att-1" {
		t.Error("same-sector transfer must not change the session")
	}
	if !rec.received("att-1", "already in this sector") {
		t.Error("attendant must see the rejection notice")
	}
}

func TestTransferGatedByBusinessHours(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	// Saturday service in an ungated sector
	saturday := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, saturday)

	e.HandleInbound(contactMsg("att-1", "/transfer 2", saturday))

	session, _ := registry.Session("contact-1")
	if session.Sector != types.SectorSupport || session.Attendant != "att-1" {
		t.Error("transfer into a closed sector must be rejected")
	}
	if !rec.received("att-1", "Monday to Friday") {
		t.Error("attendant must see the business-hours notice")
	}
}

func TestMessageForwarding(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(types.InboundMessage{
		Sender:    "contact-1",
		PushName:  "Maria",
		Content:   types.Content{Text: "my tracker stopped reporting"},
		Timestamp: monday,
	})
	if !rec.received("att-1", "my tracker stopped reporting") {
		t.Error("contact message must be forwarded to the attendant")
	}

	e.HandleInbound(contactMsg("att-1", "please reboot the device", monday))
	if !rec.received("contact-1", "please reboot the device") {
		t.Error("attendant message must be forwarded to the contact")
	}

	e.HandleInbound(types.InboundMessage{
		Sender: "contact-1",
		Content: types.Content{Media: &types.Media{
			Kind:    types.MediaImage,
			Ref:     "media/abc123",
			Caption: "photo of the device",
		}},
		Timestamp: monday,
	})
	if !rec.received("att-1", "photo of the device") {
		t.Error("media must be forwarded with its caption")
	}
}

func TestContactCannotCloseOwnService(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	e.HandleInbound(contactMsg("contact-1", "close", monday))

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageInService {
		t.Errorf("contact close token must not change the stage, got %s", session.Stage)
	}
	if !rec.received("contact-1", "Only the attendant can close") {
		t.Error("expected the redirect notice")
	}
}

func TestAttendantWithoutSession(t *testing.T) {
	e, registry, _, rec := newTestEngine()
	registry.UpsertAttendant(types.Attendant{ID: "att-1", Name: "Agent", Sector: types.SectorSupport})

	e.HandleInbound(contactMsg("att-1", "hello?", monday))

	if !rec.received("att-1", "no active service") {
		t.Error("expected the no-session notice")
	}
}

func TestQueuedContactRepeatsPosition(t *testing.T) {
	e, _, _, rec := newTestEngine()

	e.HandleInbound(contactMsg("contact-1", "1", monday))
	e.HandleInbound(contactMsg("contact-1", "1", monday.Add(time.Minute)))

	positionReplies := 0
	for _, text := range rec.textsTo("contact-1") {
		if strings.Contains(text, "position 1") {
			positionReplies++
		}
	}
	if positionReplies != 2 {
		t.Errorf("expected the position repeated, saw %d replies", positionReplies)
	}
}

func TestAdminForceTransfer(t *testing.T) {
	e, registry, queues, _ := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

	if err := e.ForceTransfer("contact-1", types.SectorAdministrative, monday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, _ := registry.Session("contact-1")
	if session.Sector != types.SectorAdministrative || session.Attendant != "" {
		t.Errorf("expected contact queued in the target sector, got %+v", session)
	}
	if queues.Position("contact-1", types.SectorAdministrative) != 1 {
		t.Error("expected a queue entry in the target sector")
	}
}

func TestAdminReopenSession(t *testing.T) {
	e, registry, queues, _ := newTestEngine()
	connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)
	e.Close("contact-1", false, monday)

	// The attendant got backfilled free; make it busy so the reopen queues
	registry.SetAttendantBusy("att-1", true)

	if err := e.ReopenSession("contact-1", monday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageInService || session.Sector != types.SectorSupport {
		t.Errorf("expected reopened session in the original sector, got %+v", session)
	}
	if queues.Position("contact-1", types.SectorSupport) != 1 {
		t.Error("expected the reopened contact queued")
	}
}

func TestAdminSetAttendantStatusMatches(t *testing.T) {
	e, registry, _, _ := newTestEngine()
	registry.UpsertAttendant(types.Attendant{ID: "att-1", Name: "Agent", Sector: types.SectorOther})
	registry.SetAttendantBusy("att-1", true)

	e.HandleInbound(contactMsg("contact-1", "4", monday))

	if err := e.SetAttendantStatus("att-1", false, monday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, _ := registry.Session("contact-1")
	if session.Attendant != "att-1" {
		t.Errorf("freeing an attendant must trigger a match, got %+v", session)
	}
}

func TestConcurrentManualAndTimeoutClose(t *testing.T) {
	for i := 0; i < 100; i++ {
		e, registry, _, rec := newTestEngine()
		connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)

		later := monday.Add(time.Minute)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			e.Close("contact-1", true, later)
		}()
		go func() {
			defer wg.Done()
			<-start
			e.Close("contact-1", false, later)
		}()
		close(start)
		wg.Wait()

		prompts, idles := 0, 0
		for _, text := range rec.textsTo("contact-1") {
			if strings.Contains(text, "rate the service") {
				prompts++
			}
			if strings.Contains(text, "inactivity") {
				idles++
			}
		}
		if prompts+idles != 1 {
			t.Fatalf("iteration %d: expected exactly one close notice, got %d rating prompts and %d inactivity notices",
				i, prompts, idles)
		}

		session, _ := registry.Session("contact-1")
		if prompts == 1 && session.Stage != types.StageAwaitingRating {
			t.Fatalf("iteration %d: manual close won but stage is %s", i, session.Stage)
		}
		if idles == 1 && session.Stage != types.StageIdle {
			t.Fatalf("iteration %d: timeout close won but stage is %s", i, session.Stage)
		}
	}
}

func TestConcurrentRatingAndExpiry(t *testing.T) {
	for i := 0; i < 100; i++ {
		e, registry, _, rec := newTestEngine()
		connect(t, e, registry, "contact-1", "att-1", types.SectorSupport, monday)
		e.Close("contact-1", true, monday)

		later := monday.Add(6 * time.Minute)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			e.HandleInbound(contactMsg("contact-1", "5", later))
		}()
		go func() {
			defer wg.Done()
			<-start
			e.Sweep(later)
		}()
		close(start)
		wg.Wait()

		rated, expired := 0, 0
		for _, text := range rec.textsTo("contact-1") {
			if strings.Contains(text, "Thank you for your rating") {
				rated++
			}
			if strings.Contains(text, "rating period has expired") {
				expired++
			}
		}
		if rated+expired != 1 {
			t.Fatalf("iteration %d: expected exactly one outcome, got %d rating acks and %d expiry notices",
				i, rated, expired)
		}
	}
}

func TestForceTransferOfQueuedContactUnderMatchPressure(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, registry, queues, _ := newTestEngine()
		registry.UpsertAttendant(types.Attendant{ID: "att-1", Name: "Agent", Sector: types.SectorSupport})
		registry.EnsureSession("contact-1", "Maria", monday)
		registry.UpdateSession("contact-1", func(s *types.Session) bool {
			s.Stage = types.StageInService
			s.Sector = types.SectorSupport
			return true
		})
		queues.Enqueue("contact-1", types.SectorSupport, monday)

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			e.ForceTransfer("contact-1", types.SectorOther, monday)
		}()
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 3; j++ {
				e.matchAndNotify(types.SectorSupport, monday)
			}
		}()
		close(start)
		wg.Wait()

		session, _ := registry.Session("contact-1")
		queued := queues.Position("contact-1", types.SectorSupport) > 0 ||
			queues.Position("contact-1", types.SectorOther) > 0
		if queued && session.Attendant != "" {
			t.Fatalf("iteration %d: contact is both queued and assigned to %s", i, session.Attendant)
		}

		open := registry.OpenServices()
		if len(open) > 1 {
			t.Fatalf("iteration %d: %d open service records for one contact", i, len(open))
		}
		if session.Attendant != "" && len(open) != 1 {
			t.Fatalf("iteration %d: assigned contact must have exactly one open record, got %d", i, len(open))
		}
		if session.Attendant == "" {
			if attendant, ok := registry.Attendant("att-1"); ok && attendant.Busy {
				t.Fatalf("iteration %d: attendant left busy with no session to serve", i)
			}
		}
	}
}

func TestForceCloseQueuedContactPromptsWithoutCode(t *testing.T) {
	e, registry, _, rec := newTestEngine()

	// No attendants in the sector, so the contact stays queued with no
	// service record
	e.HandleInbound(contactMsg("contact-1", "3", monday))

	if err := e.ForceClose("contact-1", monday.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !rec.received("contact-1", "Your service has been closed") {
		t.Error("expected the rating prompt without a code clause")
	}
	for _, text := range rec.textsTo("contact-1") {
		if strings.Contains(text, "Your service  has") {
			t.Errorf("rating prompt rendered an empty code: %q", text)
		}
	}

	session, _ := registry.Session("contact-1")
	if session.Stage != types.StageAwaitingRating {
		t.Errorf("expected AwaitingRating, got %s", session.Stage)
	}
}
