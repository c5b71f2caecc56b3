// Package scenarios holds the end-to-end scenarios that drive a running
// guardian service over HTTP and assert on the incident workflow outcome.
package scenarios

import (
	"context"
	"sync"
	"time"
)

// Scenario is one end-to-end flow against a live service.
type Scenario interface {
	Name() string

	// Description says what the scenario exercises, for the runner's output.
	Description() string

	// Setup restores the payment network to the normal state and waits out
	// any in-flight run before the scenario starts.
	Setup(ctx context.Context) error

	// Execute drives the flow and reports per-stage outcomes.
	Execute(ctx context.Context) (*Result, error)

	// Teardown puts the service back the way Setup found it.
	Teardown(ctx context.Context) error
}

// Result is the outcome of one scenario run. Mutating methods are safe to
// call from the stage goroutines the runner spawns.
type Result struct {
	mu sync.Mutex

	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Details carries scenario-specific output, e.g. the agent log transcript.
	Details map[string]any `json:"details,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Stages records each named stage in execution order.
	Stages []StageResult `json:"stages,omitempty"`
}

// StageResult is the outcome of a single stage within a scenario.
type StageResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewResult returns a Result with the clock started and Success unset;
// scenarios flip Success only after every stage passes.
func NewResult(scenarioName string) *Result {
	return &Result{
		ScenarioName: scenarioName,
		StartTime:    time.Now(),
		Details:      make(map[string]any),
		Errors:       []string{},
		Warnings:     []string{},
		Stages:       []StageResult{},
	}
}

// Complete stops the clock.
func (r *Result) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

func (r *Result) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

// AddWarning records a non-fatal observation that should not fail the run.
func (r *Result) AddWarning(warning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, warning)
}

func (r *Result) AddStage(name string, success bool, duration time.Duration, err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, StageResult{
		Name:     name,
		Success:  success,
		Duration: duration,
		Error:    err,
	})
}

// SetDetail attaches a scenario-specific value to the result.
func (r *Result) SetDetail(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Details[key] = value
}

// Fail marks the run failed and records msg in both Error and Errors.
func (r *Result) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Success = false
	r.Error = msg
	r.Errors = append(r.Errors, msg)
}
