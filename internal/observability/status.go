package observability

import (
	"sync"
	"time"
)

// Phase is the orchestrator state shown on the status line.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhasePlanning   Phase = "PLANNING"
	PhaseExecuting  Phase = "EXECUTING"
	PhaseRePlanning Phase = "REPLANNING"
	PhaseValidating Phase = "VALIDATING"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentPhase  Phase
	ActiveTask    string
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentPhase:  PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(phase Phase, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentPhase = phase
	globalStatus.ActiveTask = task
	globalStatus.LastHeartbeat = time.Now()
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Phase, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentPhase, globalStatus.ActiveTask, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
