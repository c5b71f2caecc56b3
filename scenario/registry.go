package scenario

import (
	"sync"
	"time"
)

// Snapshot is the externally visible system state: what the dashboard polls.
type Snapshot struct {
	Timestamp  string            `json:"timestamp"`
	Nodes      map[string]Health `json:"nodes"`
	AgentLogs  []string          `json:"agent_logs"`
	Scenario   string            `json:"scenario"`
	Processing bool              `json:"is_processing"`
}

// Registry holds the current snapshot and serializes all mutations. Every
// mutation builds a fresh snapshot value, so readers always see a complete,
// consistent state and returned snapshots never change under the caller.
type Registry struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewRegistry creates a registry with all nodes healthy and no scenario
// active.
func NewRegistry() *Registry {
	return &Registry{
		snap: Snapshot{
			Nodes:    NormalNodes(),
			Scenario: ScenarioNormal,
		},
	}
}

// Snapshot returns a deep copy of the current state, stamped with the read
// time.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.copyLocked()
	out.Timestamp = time.Now().Format("15:04:05")
	return out
}

// SetScenario replaces the active scenario and the node healths.
func (r *Registry) SetScenario(scenarioID string, nodes map[string]Health) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	next.Scenario = scenarioID
	next.Nodes = make(map[string]Health, len(nodes))
	for k, v := range nodes {
		next.Nodes[k] = v
	}
	r.snap = next
}

// AppendLog adds a timestamped line to the agent log feed.
func (r *Registry) AppendLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	stamped := "[" + time.Now().Format("15:04:05") + "] " + line
	next.AgentLogs = append(next.AgentLogs, stamped)
	r.snap = next
}

// ResetLogs clears the agent log feed.
func (r *Registry) ResetLogs() {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	next.AgentLogs = nil
	r.snap = next
}

// TryBegin claims the single run slot. Returns false when a run is already
// in flight; the caller must reject the trigger instead of stacking runs.
func (r *Registry) TryBegin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snap.Processing {
		return false
	}
	next := r.copyLocked()
	next.Processing = true
	r.snap = next
	return true
}

// End releases the run slot.
func (r *Registry) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	next.Processing = false
	r.snap = next
}

// Processing reports whether a run is in flight.
func (r *Registry) Processing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Processing
}

// copyLocked deep-copies the snapshot. Caller holds r.mu.
func (r *Registry) copyLocked() Snapshot {
	out := r.snap
	out.Nodes = make(map[string]Health, len(r.snap.Nodes))
	for k, v := range r.snap.Nodes {
		out.Nodes[k] = v
	}
	out.AgentLogs = make([]string, len(r.snap.AgentLogs))
	copy(out.AgentLogs, r.snap.AgentLogs)
	return out
}
