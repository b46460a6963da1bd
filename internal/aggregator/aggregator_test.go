package aggregator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/types"
)

func TestBuildSnapshotCoversAllSectors(t *testing.T) {
	registry := cache.NewRegistry()
	queues := queue.NewManager(registry, zerolog.Nop())
	agg := NewAggregator(registry, queues, nil, time.Second, zerolog.Nop())

	snapshot := agg.BuildSnapshot(time.Now())

	if snapshot.Type != "snapshot" {
		t.Errorf("expected type snapshot, got %q", snapshot.Type)
	}
	if len(snapshot.Sectors) != len(types.AllSectors) {
		t.Errorf("expected %d sectors, got %d", len(types.AllSectors), len(snapshot.Sectors))
	}
	for _, sector := range types.AllSectors {
		data, ok := snapshot.Sectors[sector]
		if !ok {
			t.Fatalf("missing sector %s in snapshot", sector)
		}
		if data.Name != sector.Name() {
			t.Errorf("sector %s: expected name %q, got %q", sector, sector.Name(), data.Name)
		}
	}
}

func TestBuildSnapshotReflectsState(t *testing.T) {
	registry := cache.NewRegistry()
	queues := queue.NewManager(registry, zerolog.Nop())
	agg := NewAggregator(registry, queues, nil, time.Second, zerolog.Nop())

	now := time.Now()
	registry.UpsertAttendant(types.Attendant{ID: "att-1", Name: "Ana", Sector: types.SectorSupport})
	registry.UpsertAttendant(types.Attendant{ID: "att-2", Name: "Bruno", Sector: types.SectorSupport, Busy: true})

	registry.EnsureSession("contact-1", "Carla", now.Add(-time.Minute))
	registry.UpdateSession("contact-1", func(s *types.Session) bool {
		s.Stage = types.StageInService
		s.Sector = types.SectorSupport
		return true
	})
	queues.Enqueue("contact-1", types.SectorSupport, now.Add(-time.Minute))

	// Idle sessions are not part of any sector's board
	registry.EnsureSession("contact-2", "Davi", now)

	snapshot := agg.BuildSnapshot(now)
	support := snapshot.Sectors[types.SectorSupport]

	if len(support.Sessions) != 1 || support.Sessions[0].Contact != "contact-1" {
		t.Errorf("expected contact-1 in support sessions, got %+v", support.Sessions)
	}
	if len(support.Attendants) != 2 {
		t.Errorf("expected 2 support attendants, got %d", len(support.Attendants))
	}
	if support.Queue.WaitingCount != 1 {
		t.Errorf("expected 1 waiting, got %d", support.Queue.WaitingCount)
	}
	if support.Queue.FreeAttendants != 1 || support.Queue.BusyAttendants != 1 {
		t.Errorf("expected 1 free / 1 busy, got %d / %d",
			support.Queue.FreeAttendants, support.Queue.BusyAttendants)
	}

	for _, sector := range types.AllSectors {
		if sector == types.SectorSupport {
			continue
		}
		if got := snapshot.Sectors[sector].Queue.WaitingCount; got != 0 {
			t.Errorf("sector %s: expected empty queue, got %d waiting", sector, got)
		}
	}
}
