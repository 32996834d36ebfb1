package room

import (
	"log/slog"
	"sync"
	"time"
)

// RuntimeMetrics accumulates loop counters. It is internally locked so a
// driver or diagnostics plugin can snapshot it off the coordinator thread.
type RuntimeMetrics struct {
	mu          sync.Mutex
	events      uint64
	renders     uint64
	dirtyZones  uint64
	zoneUpdates uint64
}

// NewRuntimeMetrics creates a zeroed accumulator.
func NewRuntimeMetrics() *RuntimeMetrics {
	return &RuntimeMetrics{}
}

// RecordEvent counts one dispatched event.
func (m *RuntimeMetrics) RecordEvent() {
	m.mu.Lock()
	m.events++
	m.mu.Unlock()
}

// RecordRender counts one committed render pass touching dirty zones.
func (m *RuntimeMetrics) RecordRender(dirty int) {
	m.mu.Lock()
	m.renders++
	m.dirtyZones += uint64(dirty)
	m.mu.Unlock()
}

// RecordZoneUpdates counts queued zone content updates.
func (m *RuntimeMetrics) RecordZoneUpdates(n int) {
	m.mu.Lock()
	m.zoneUpdates += uint64(n)
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Uptime      time.Duration
	Events      uint64
	Renders     uint64
	DirtyZones  uint64
	ZoneUpdates uint64
}

// Snapshot copies the counters.
func (m *RuntimeMetrics) Snapshot(uptime time.Duration) MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Uptime:      uptime,
		Events:      m.events,
		Renders:     m.renders,
		DirtyZones:  m.dirtyZones,
		ZoneUpdates: m.zoneUpdates,
	}
}

// LogValue renders the snapshot as a structured slog group.
func (s MetricsSnapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("uptime_ms", s.Uptime.Milliseconds()),
		slog.Uint64("events", s.Events),
		slog.Uint64("renders", s.Renders),
		slog.Uint64("dirty_zones", s.DirtyZones),
		slog.Uint64("zone_updates", s.ZoneUpdates),
	)
}
