package mcast

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"sort"
)

// Registry owns every StreamRecord seen since the last reset plus the
// all-streams aggregate. It is not safe for concurrent use.
type Registry struct {
	name      string
	streamCfg statistic.ScopeConfig
	aggCfg    statistic.ScopeConfig

	streams   map[statistic.StreamKey]*statistic.StreamRecord
	aggregate *statistic.Scope
}

// NewRegistry creates an empty registry. name only labels diagnostics and snapshots.
func NewRegistry(name string, cfg config.MulticastConfig) *Registry {
	cfg = cfg.WithDefaults()
	base := statistic.ScopeConfig{
		Window:          cfg.Window(),
		BurstTrigger:    cfg.BurstTriggerThreshold,
		BurstCapacity:   statistic.BurstCapacity(cfg.MaxPacketsPerSecond, cfg.Window()),
		BufferThreshold: cfg.BufferAlarmThresholdBytes,
	}
	streamCfg, aggCfg := base, base
	streamCfg.DrainRate = cfg.StreamDrainRate
	aggCfg.DrainRate = cfg.AggregateDrainRate

	return &Registry{
		name:      name,
		streamCfg: streamCfg,
		aggCfg:    aggCfg,
		streams:   make(map[statistic.StreamKey]*statistic.StreamRecord),
	}
}

// FindOrCreate returns the record of key, creating it from packet when it does not exist yet.
func (r *Registry) FindOrCreate(key statistic.StreamKey, packet *model.PacketInfo) *statistic.StreamRecord {
	if rec, ok := r.streams[key]; ok {
		return rec
	}
	rec := &statistic.StreamRecord{
		Key:   key,
		Scope: statistic.NewScope(r.name+" "+key.String(), r.streamCfg, packet),
	}
	r.streams[key] = rec
	return rec
}

// Aggregate returns the all-streams scope, creating it from packet on first use after a reset.
func (r *Registry) Aggregate(packet *model.PacketInfo) *statistic.Scope {
	if r.aggregate == nil {
		r.aggregate = statistic.NewScope(r.name+" all streams", r.aggCfg, packet)
	}
	return r.aggregate
}

// Reset discards every record and the aggregate. Resetting an empty registry is a no-op.
func (r *Registry) Reset() {
	if len(r.streams) > 0 {
		r.streams = make(map[statistic.StreamKey]*statistic.StreamRecord)
	}
	r.aggregate = nil
}

// Len returns the number of streams.
func (r *Registry) Len() int {
	return len(r.streams)
}

// Snapshot returns a deep copy of the registry. Streams are ordered by their
// first frame number so that identical inputs produce identical snapshots.
func (r *Registry) Snapshot() statistic.Snapshot {
	snap := statistic.Snapshot{
		TaskName: r.name,
		Streams:  make([]statistic.StreamStats, 0, len(r.streams)),
	}
	for key, rec := range r.streams {
		snap.Streams = append(snap.Streams, statistic.StreamStats{Key: key, ScopeStats: rec.Stats()})
	}
	sort.Slice(snap.Streams, func(i, j int) bool {
		a, b := snap.Streams[i], snap.Streams[j]
		if a.FirstFrame != b.FirstFrame {
			return a.FirstFrame < b.FirstFrame
		}
		return a.Key.String() < b.Key.String()
	})
	if r.aggregate != nil {
		agg := r.aggregate.Stats()
		snap.Aggregate = &agg
	}
	return snap
}
