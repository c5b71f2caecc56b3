package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paymentops/guardian/metrics"
	"github.com/paymentops/guardian/workflow"
)

// TriggerStatus is the immediate answer to a scenario trigger.
type TriggerStatus string

const (
	// TriggerAccepted means a background run was launched.
	TriggerAccepted TriggerStatus = "accepted"
	// TriggerOK means the scenario was applied without a run.
	TriggerOK TriggerStatus = "ok"
	// TriggerBusy means a run is already in flight.
	TriggerBusy TriggerStatus = "busy"
)

// maxLoggedToolResult caps tool output in the status feed.
const maxLoggedToolResult = 30

// IncidentEngine runs one incident workflow over a raw log.
type IncidentEngine interface {
	Run(ctx context.Context, rawLog string, opts ...workflow.RunOption) (workflow.State, error)
}

// Runner binds scenario triggers to the incident workflow. A trigger
// applies the scenario to the registry immediately and launches the
// analysis in a background goroutine; the status feed shows progress as
// the run advances.
type Runner struct {
	registry  *Registry
	engine    IncidentEngine
	simulator *Simulator
	hasLive   func() bool
	forceSim  bool
	logger    *slog.Logger
	timeout   time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithForceSimulation routes every run through the canned transcript.
func WithForceSimulation(force bool) RunnerOption {
	return func(r *Runner) {
		r.forceSim = force
	}
}

// WithLiveCheck sets the predicate deciding whether live model endpoints
// exist. Without one the runner always simulates.
func WithLiveCheck(check func() bool) RunnerOption {
	return func(r *Runner) {
		r.hasLive = check
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunTimeout bounds a background run.
func WithRunTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a runner. engine may be nil when only simulation is
// wanted.
func NewRunner(registry *Registry, engine IncidentEngine, simulator *Simulator, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:  registry,
		engine:    engine,
		simulator: simulator,
		hasLive:   func() bool { return false },
		logger:    slog.Default(),
		timeout:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trigger applies the scenario and, for failure scenarios, launches the
// analysis run. The node map changes before this returns; the run reports
// progress asynchronously through the registry.
func (r *Runner) Trigger(scenarioID string) TriggerStatus {
	out := Apply(scenarioID)
	r.registry.SetScenario(scenarioID, out.Nodes)

	if !out.LaunchRun {
		r.registry.ResetLogs()
		r.registry.AppendLog(out.LogLine)
		return TriggerOK
	}

	if !r.registry.TryBegin() {
		r.logger.Warn("Scenario trigger rejected, run in flight", "scenario", scenarioID)
		return TriggerBusy
	}

	go r.run(scenarioID, out.ErrorLog)
	return TriggerAccepted
}

// run executes the analysis in the background. Panics are recovered into
// the status feed so a bad run never kills the server.
func (r *Runner) run(scenarioID, errorLog string) {
	started := time.Now()
	status := "success"

	defer func() {
		if rec := recover(); rec != nil {
			status = "panic"
			r.logger.Error("Incident run panicked", "scenario", scenarioID, "panic", rec)
			r.registry.AppendLog(fmt.Sprintf("[Error] Analysis aborted: %v", rec))
		}
		metrics.RunsTotal.WithLabelValues(scenarioID, status).Inc()
		metrics.RunDuration.WithLabelValues(scenarioID).Observe(time.Since(started).Seconds())
		r.registry.End()
	}()

	r.registry.ResetLogs()
	r.registry.AppendLog("[System] Incident analysis and response process started...")

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.engine == nil || r.forceSim || !r.hasLive() {
		r.simulator.Run(ctx, scenarioID)
		return
	}

	_, err := r.engine.Run(ctx, errorLog, workflow.WithRunObserver(r.feedObserver()))
	if err != nil {
		status = "error"
		r.registry.AppendLog(fmt.Sprintf("[Error] Workflow failed: %v", err))
	}
}

// feedObserver translates engine snapshots into status-feed lines. Each
// snapshot names the next stage; the stage that just ran is tracked across
// calls, starting from triage.
func (r *Runner) feedObserver() workflow.Observer {
	executed := workflow.StageTriage
	seenSteps := 0

	return func(snap workflow.Snapshot) {
		switch executed {
		case workflow.StageTriage:
			r.registry.AppendLog("[Router] Analyzing log type...")

		case workflow.StageDiagnosis:
			if snap.Stage == workflow.StageReport {
				r.registry.AppendLog("[Diagnosis] Reasoning over the root cause...")
			}

		case workflow.StageToolExec:
			for _, step := range snap.State.ToolSteps[seenSteps:] {
				r.registry.AppendLog("[Tool Result] " + truncateLine(step.Result, maxLoggedToolResult))
			}
			seenSteps = len(snap.State.ToolSteps)

		case workflow.StageReport:
			if report := snap.State.Report; report != nil {
				r.registry.AppendLog(fmt.Sprintf("[Report] Severity: %s, MMS sent.", report.Severity))
				r.registry.AppendLog("[Done] Workflow finished.")
			}
		}
		executed = snap.Stage
	}
}

func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
