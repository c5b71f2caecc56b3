package scenarios

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paymentops/guardian/scenario"
	"github.com/paymentops/guardian/test/e2e/client"
	"github.com/paymentops/guardian/test/e2e/config"
)

// base carries the pieces shared by all guardian scenarios.
type base struct {
	cfg    *config.Config
	client *client.Client
}

func newBase(cfg *config.Config) base {
	return base{cfg: cfg, client: client.New(cfg)}
}

// resetToNormal waits out any in-flight run and restores the healthy
// network. Used by Setup and Teardown so scenarios never leak state into
// each other.
func (b base) resetToNormal(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.WaitTimeout)
	defer cancel()
	if _, err := b.client.WaitForIdle(waitCtx); err != nil {
		return err
	}

	code, status, err := b.client.SetScenario(ctx, scenario.ScenarioNormal)
	if err != nil {
		return err
	}
	if code != 200 || status != "ok" {
		return fmt.Errorf("reset to normal: got status %d/%q", code, status)
	}

	snap, err := b.client.Status(ctx)
	if err != nil {
		return err
	}
	for node, health := range snap.Nodes {
		if health != scenario.HealthNormal {
			return fmt.Errorf("reset to normal: node %s still %s", node, health)
		}
	}
	return nil
}

// stage runs fn under the stage timeout and records it on the result.
// Returns false if the stage failed, which also fails the result.
func (b base) stage(ctx context.Context, result *Result, name string, fn func(context.Context) error) bool {
	stageCtx, cancel := context.WithTimeout(ctx, b.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	duration := time.Since(start)

	if err != nil {
		result.AddStage(name, false, duration, err.Error())
		result.Fail(fmt.Sprintf("%s: %v", name, err))
		return false
	}
	result.AddStage(name, true, duration, "")
	return true
}

// containsLine reports whether any agent log line contains substr.
func containsLine(lines []string, substr string) bool {
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
