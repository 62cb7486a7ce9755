package model

import "McastSpectra/internal/config"

// Task defines a single, self-contained statistics task.
// This is the interface for the "execution layer".
type Task interface {
	ProcessPacket(packet *PacketInfo)
	Snapshot() interface{}
	Reset()
	Name() string
	// AlerterMsg evaluates the rules that target this task and returns an
	// HTML fragment describing the triggered ones, or "" when none fired.
	AlerterMsg(rules []config.AlerterRule) string
}
