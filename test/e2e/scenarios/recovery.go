package scenarios

import (
	"context"
	"fmt"

	"github.com/paymentops/guardian/scenario"
	"github.com/paymentops/guardian/test/e2e/config"
)

// RecoveryScenario verifies that the normal scenario restores the healthy
// network immediately, without launching an incident run.
type RecoveryScenario struct {
	base
}

// NewRecoveryScenario creates the recovery scenario.
func NewRecoveryScenario(cfg *config.Config) *RecoveryScenario {
	return &RecoveryScenario{base: newBase(cfg)}
}

func (s *RecoveryScenario) Name() string { return "recovery" }

func (s *RecoveryScenario) Description() string {
	return "Applies the normal scenario and checks the network recovers without a workflow run"
}

func (s *RecoveryScenario) Setup(ctx context.Context) error {
	if err := s.client.Healthz(ctx); err != nil {
		return fmt.Errorf("guardian not reachable: %w", err)
	}
	return s.resetToNormal(ctx)
}

func (s *RecoveryScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	defer result.Complete()

	// Break something first so recovery has an observable effect.
	if !s.stage(ctx, result, "inject-failure", func(ctx context.Context) error {
		code, status, err := s.client.SetScenario(ctx, scenario.ScenarioSingleFailure)
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

	if !s.stage(ctx, result, "wait-for-run", func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
		_, err := s.client.WaitForIdle(waitCtx)
		return err
	}) {
		return result, nil
	}

	if !s.stage(ctx, result, "recover", func(ctx context.Context) error {
		code, status, err := s.client.SetScenario(ctx, scenario.ScenarioNormal)
		if err != nil {
			return err
		}
		if code != 200 || status != "ok" {
			return fmt.Errorf("expected 200/ok, got %d/%q", code, status)
		}

		snap, err := s.client.Status(ctx)
		if err != nil {
			return err
		}
		if snap.Processing {
			return fmt.Errorf("recovery must not launch a run")
		}
		for node, health := range snap.Nodes {
			if health != scenario.HealthNormal {
				return fmt.Errorf("node %s still %s after recovery", node, health)
			}
		}
		if !containsLine(snap.AgentLogs, "recovery complete") {
			return fmt.Errorf("recovery log line missing, got: %v", snap.AgentLogs)
		}
		result.SetDetail("agent_logs", snap.AgentLogs)
		return nil
	}) {
		return result, nil
	}

	result.Success = true
	return result, nil
}

func (s *RecoveryScenario) Teardown(ctx context.Context) error {
	return s.resetToNormal(ctx)
}
