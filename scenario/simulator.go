package scenario

import (
	"context"
	"time"
)

// DefaultSimulatorPace is the delay between canned transcript lines.
const DefaultSimulatorPace = time.Second

// Simulator plays a canned incident-response transcript into the registry.
// It is the degraded-mode path: used when no live model endpoint is
// configured or simulation is forced. It never errors, so the demo stays
// alive without any AI backend.
type Simulator struct {
	registry *Registry
	pace     time.Duration
}

// NewSimulator creates a simulator. pace <= 0 uses DefaultSimulatorPace.
func NewSimulator(registry *Registry, pace time.Duration) *Simulator {
	if pace <= 0 {
		pace = DefaultSimulatorPace
	}
	return &Simulator{registry: registry, pace: pace}
}

// Run plays the transcript for the scenario. Returns early on context
// cancellation; lines appended so far stay in the feed.
func (s *Simulator) Run(ctx context.Context, scenarioID string) {
	steps := [][]string{
		{"[System] AI engine not connected. Switching to simulation mode."},
		{"[Router] Log analysis verdict: 'Critical' grade."},
		s.diagnosisLines(scenarioID),
		{
			"[RAG] Searching SOP manual by error code...",
			"[Result] SOP found: 'switch to the standby line and notify the duty engineer'.",
		},
		{
			"[Notify] SMS sent to the operations team and the service owner.",
			"[Done] Incident response actions completed.",
		},
	}

	for _, lines := range steps {
		if !s.pause(ctx) {
			return
		}
		for _, line := range lines {
			s.registry.AppendLog(line)
		}
	}
}

func (s *Simulator) diagnosisLines(scenarioID string) []string {
	if scenarioID == ScenarioSingleFailure {
		return []string{
			"[Diagnosis] 'Shinhan_Bank' response delay (3000ms) confirmed.",
			"[Tool] Network health check (ping) complete.",
		}
	}
	return []string{
		"[Diagnosis] Multiple nodes unreachable.",
		"[Tool] Full infrastructure health check performed.",
	}
}

// pause waits one pace tick. Returns false when the context ended first.
func (s *Simulator) pause(ctx context.Context) bool {
	timer := time.NewTimer(s.pace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
