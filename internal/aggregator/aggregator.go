package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/alerts"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/types"
	"github.com/theuszinp/chatbot/internal/websocket"
)

// Aggregator periodically assembles the full board state and pushes it
// to connected dashboards
type Aggregator struct {
	registry *cache.Registry
	queues   *queue.Manager
	hub      *websocket.Hub
	interval time.Duration
	logger   zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(registry *cache.Registry, queues *queue.Manager, hub *websocket.Hub, interval time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		queues:   queues,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Start begins building snapshots and broadcasting them
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	m := metrics.Get()
	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			if a.hub.ClientCount() == 0 {
				continue
			}

			cycleStart := time.Now()
			snapshot := a.BuildSnapshot(cycleStart)

			data, err := json.Marshal(snapshot)
			if err != nil {
				a.logger.Error().Err(err).Msg("failed to marshal snapshot")
				m.RecordAggregationError()
				continue
			}

			a.hub.Broadcast(data)
			m.RecordSnapshotBroadcast(time.Since(cycleStart))

			a.logger.Debug().
				Int("sectors", len(snapshot.Sectors)).
				Int("clients", a.hub.ClientCount()).
				Msg("snapshot broadcasted")
		}
	}
}

// BuildSnapshot assembles the state of every sector at a point in time
func (a *Aggregator) BuildSnapshot(now time.Time) types.Snapshot {
	sessions := a.registry.Sessions()

	bySector := make(map[types.Sector][]types.Session)
	for _, session := range sessions {
		if !session.Stage.Connectable() {
			continue
		}
		bySector[session.Sector] = append(bySector[session.Sector], session)
	}

	queues := make([]types.QueueSnapshot, 0, len(types.AllSectors))
	for _, sector := range types.AllSectors {
		queues = append(queues, a.queues.Snapshot(sector, now))
	}
	alerts.CheckQueueAlerts(queues)

	snapshot := types.Snapshot{
		Type:      "snapshot",
		Timestamp: now,
		Sectors:   make(map[types.Sector]*types.SectorData, len(types.AllSectors)),
	}
	for i, sector := range types.AllSectors {
		snapshot.Sectors[sector] = &types.SectorData{
			Name:       sector.Name(),
			Queue:      queues[i],
			Sessions:   bySector[sector],
			Attendants: a.registry.AttendantsBySector(sector),
		}
	}
	return snapshot
}
