package scenarios

import (
	"context"
	"fmt"

	"github.com/paymentops/guardian/scenario"
	"github.com/paymentops/guardian/test/e2e/config"
)

// IncidentScenario drives a full incident response: inject a bank failure,
// watch the degraded node appear, and wait for the workflow transcript to
// complete.
type IncidentScenario struct {
	base
	scenarioType string
	failedNodes  []string
}

// NewSingleFailureScenario creates the Shinhan Bank outage scenario.
func NewSingleFailureScenario(cfg *config.Config) *IncidentScenario {
	return &IncidentScenario{
		base:         newBase(cfg),
		scenarioType: scenario.ScenarioSingleFailure,
		failedNodes:  []string{"Shinhan_Bank"},
	}
}

// NewTripleFailureScenario creates the multi-node outage scenario.
func NewTripleFailureScenario(cfg *config.Config) *IncidentScenario {
	return &IncidentScenario{
		base:         newBase(cfg),
		scenarioType: scenario.ScenarioTripleFailure,
		failedNodes:  []string{"KIS_VAN", "Samsung_Card", "Kookmin_Bank"},
	}
}

func (s *IncidentScenario) Name() string { return s.scenarioType }

func (s *IncidentScenario) Description() string {
	return fmt.Sprintf("Injects %s and verifies the incident workflow runs to completion", s.scenarioType)
}

func (s *IncidentScenario) Setup(ctx context.Context) error {
	if err := s.client.Healthz(ctx); err != nil {
		return fmt.Errorf("guardian not reachable: %w", err)
	}
	return s.resetToNormal(ctx)
}

func (s *IncidentScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	defer result.Complete()

	if !s.stage(ctx, result, "trigger", func(ctx context.Context) error {
		code, status, err := s.client.SetScenario(ctx, s.scenarioType)
		if err != nil {
			return err
		}
		if code != 202 || status != "accepted" {
			return fmt.Errorf("expected 202/accepted, got %d/%q", code, status)
		}
		return nil
	}) {
		return result, nil
	}

	// Node health flips synchronously with the trigger, before the
	// workflow finishes.
	if !s.stage(ctx, result, "nodes-degraded", func(ctx context.Context) error {
		snap, err := s.client.Status(ctx)
		if err != nil {
			return err
		}
		for _, node := range s.failedNodes {
			if snap.Nodes[node] != scenario.HealthError {
				return fmt.Errorf("node %s should be in error, got %q", node, snap.Nodes[node])
			}
		}
		if snap.Scenario != s.scenarioType {
			return fmt.Errorf("expected scenario %q, got %q", s.scenarioType, snap.Scenario)
		}
		return nil
	}) {
		return result, nil
	}

	if !s.stage(ctx, result, "workflow-completes", func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
		snap, err := s.client.WaitForIdle(waitCtx)
		if err != nil {
			return err
		}
		if len(snap.AgentLogs) == 0 {
			return fmt.Errorf("agent log is empty after run")
		}
		if !containsLine(snap.AgentLogs, "[Done]") {
			return fmt.Errorf("transcript missing completion line, got: %v", snap.AgentLogs)
		}
		result.SetDetail("agent_logs", snap.AgentLogs)
		return nil
	}) {
		return result, nil
	}

	result.Success = true
	return result, nil
}

func (s *IncidentScenario) Teardown(ctx context.Context) error {
	return s.resetToNormal(ctx)
}
