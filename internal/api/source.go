package api

import "McastSpectra/internal/model"

// StatsSource is the read side of the engine consumed by every API surface.
type StatsSource interface {
	Tasks() []model.Task
	Snapshots() map[string]interface{}
	Reset()
}
