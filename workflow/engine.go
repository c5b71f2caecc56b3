package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/metrics"
	"github.com/paymentops/guardian/tools"
)

// Stage identifies a workflow stage.
type Stage string

const (
	// StageTriage classifies the raw log.
	StageTriage Stage = "triage"
	// StageDiagnosis runs a tool-bound reasoning turn.
	StageDiagnosis Stage = "diagnosis"
	// StageToolExec answers pending tool calls.
	StageToolExec Stage = "tools"
	// StageReport writes the structured incident report.
	StageReport Stage = "report"
	// StageDone terminates the run.
	StageDone Stage = "done"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// DefaultMaxToolRounds caps how many times diagnosis may loop through tool
// execution before the engine forces the report stage. Keeps a model that
// keeps asking for tools from spinning forever.
const DefaultMaxToolRounds = 5

// Snapshot is the engine state after a transition, delivered to observers.
// The contained State is an immutable copy.
type Snapshot struct {
	RunID string
	Stage Stage
	State State
}

// Observer receives a snapshot after every stage transition. Called
// synchronously from the run goroutine; keep it fast.
type Observer func(Snapshot)

// Engine drives a run through the stage graph:
//
//	triage -> diagnosis <-> tools
//	             |
//	           report -> done
//
// with a short-circuit from triage straight to done for non-incident logs.
type Engine struct {
	stages        *Stages
	maxToolRounds int
	observer      Observer
	logger        *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver sets the transition observer.
func WithObserver(obs Observer) EngineOption {
	return func(e *Engine) {
		e.observer = obs
	}
}

// WithMaxToolRounds overrides the tool round cap.
func WithMaxToolRounds(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxToolRounds = n
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a workflow engine over the given ports.
func NewEngine(client llm.Completer, toolExec tools.Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stages = NewStages(client, toolExec, e.logger)
	return e
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	observer Observer
}

// WithRunObserver adds an observer for this run only, alongside any
// engine-level observer.
func WithRunObserver(obs Observer) RunOption {
	return func(c *runConfig) {
		c.observer = obs
	}
}

// ObserverFromOptions extracts the observer configured by run options.
// Lets engine stand-ins replay snapshots the way a real run would.
func ObserverFromOptions(opts ...RunOption) Observer {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.observer
}

// Run executes one incident run over the raw log and returns the terminal
// state. Each run gets a fresh state under a new run ID; runs never share
// state. Cancellation is honored between stages, never mid-call, so a
// cancelled run still has a consistent state.
func (e *Engine) Run(ctx context.Context, rawLog string, opts ...RunOption) (State, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := uuid.New().String()
	state := NewState(runID, rawLog)
	stage := StageTriage
	toolRounds := 0

	e.logger.Info("Incident run started", "run_id", runID)

	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Incident run cancelled", "run_id", runID, "stage", stage)
			return state, err
		}

		started := time.Now()
		var out StageOutput
		var next Stage

		switch stage {
		case StageTriage:
			out = e.stages.Triage(ctx, state)
			state = Apply(state, out)
			next = RouteAfterTriage(state.RawLog)

		case StageDiagnosis:
			out = e.stages.Diagnosis(ctx, state)
			state = Apply(state, out)
			next = RouteAfterDiagnosis(state)
			if next == StageToolExec && toolRounds >= e.maxToolRounds {
				e.logger.Warn("Tool round budget exhausted, forcing report",
					"run_id", runID, "rounds", toolRounds)
				metrics.ToolRoundsExhaustedTotal.Inc()
				state = Apply(state, e.stages.DeclinePendingTools(state))
				next = StageReport
			}

		case StageToolExec:
			out = e.stages.ExecuteTools(ctx, state)
			state = Apply(state, out)
			toolRounds++
			next = StageDiagnosis

		case StageReport:
			out = e.stages.Report(ctx, state)
			state = Apply(state, out)
			next = StageDone

		default:
			next = StageDone
		}

		metrics.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(started).Seconds())
		metrics.StageTransitionsTotal.WithLabelValues(stage.String(), next.String()).Inc()

		snap := Snapshot{RunID: runID, Stage: next, State: state}
		e.notify(snap)
		if cfg.observer != nil {
			cfg.observer(snap)
		}
		stage = next
	}

	e.logger.Info("Incident run finished",
		"run_id", runID,
		"severity", state.Severity,
		"tool_steps", len(state.ToolSteps),
		"has_report", state.Report != nil)

	return state, nil
}

func (e *Engine) notify(snap Snapshot) {
	if e.observer != nil {
		e.observer(snap)
	}
}
