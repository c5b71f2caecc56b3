// Package workflow provides the incident-response workflow: triage of raw
// network logs, tool-augmented diagnosis, and structured report generation.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paymentops/guardian/llm"
)

// Severity grades an incident.
type Severity string

const (
	// SeverityCritical indicates payment traffic is failing now.
	SeverityCritical Severity = "Critical"
	// SeverityMajor indicates degraded service needing prompt action.
	SeverityMajor Severity = "Major"
	// SeverityMinor indicates a contained fault with a workaround.
	SeverityMinor Severity = "Minor"
	// SeverityUnknown is the provisional grade before a report exists, and
	// the grade of a failed analysis.
	SeverityUnknown Severity = "Unknown"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// MMSPrefix starts every notification text message.
const MMSPrefix = "[PayGuard Alert]"

// MaxMMSLength is the notification text limit in runes.
const MaxMMSLength = 80

// IncidentReport is the structured outcome of a completed run. Built once
// by the report stage and never modified afterwards.
type IncidentReport struct {
	// Severity is the incident grade: Critical, Major, or Minor. A fallback
	// report uses Unknown.
	Severity string `json:"severity" validate:"required,oneof=Critical Major Minor Unknown"`
	// Location names the failing component (bank, VAN, gateway).
	Location string `json:"location" validate:"required"`
	// RootCause summarizes the diagnosed cause.
	RootCause string `json:"root_cause" validate:"required"`
	// ActionItems are the concrete remediation steps, SOP-grounded.
	ActionItems []string `json:"action_items" validate:"required,min=1"`
	// MMSText is the on-call notification message.
	MMSText string `json:"mms_text" validate:"required"`
	// Evidence cites the tool results the diagnosis rests on.
	Evidence string `json:"evidence"`
}

// NormalizeMMS enforces the notification format: the standard prefix and
// the length cap.
func (r *IncidentReport) NormalizeMMS() {
	text := strings.TrimSpace(r.MMSText)
	if !strings.HasPrefix(text, MMSPrefix) {
		text = MMSPrefix + " " + text
	}
	if runes := []rune(text); len(runes) > MaxMMSLength {
		text = string(runes[:MaxMMSLength])
	}
	r.MMSText = text
}

// ActionPlan renders the single-line plan shown in status feeds.
func (r *IncidentReport) ActionPlan() string {
	return fmt.Sprintf("[%s] %s - %s / actions: %s",
		r.Severity, r.Location, r.RootCause, strings.Join(r.ActionItems, ", "))
}

// TriageResult is the structured verdict of the triage stage. It informs
// the operator transcript; routing reads the raw log independently.
type TriageResult struct {
	// IsIncident is true when the log needs immediate response.
	IsIncident bool `json:"is_incident"`
	// Category is the fault class (Network, Database, Application, None).
	Category string `json:"category" validate:"required"`
	// Reason explains the verdict.
	Reason string `json:"reason"`
}

// ToolStep records one executed tool call, accumulated as diagnosis
// evidence.
type ToolStep struct {
	CallID    string          `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
	IsError   bool            `json:"is_error"`
}

// State is the full run state. RawLog never changes after the run starts;
// everything else evolves only through Apply.
type State struct {
	RunID           string
	RawLog          string
	Messages        []llm.Message
	ToolSteps       []ToolStep
	Report          *IncidentReport
	FinalActionPlan string
	Severity        Severity
}

// NewState creates the initial state for a run.
func NewState(runID, rawLog string) State {
	return State{
		RunID:    runID,
		RawLog:   rawLog,
		Severity: SeverityUnknown,
	}
}

// StageOutput is the delta a stage produces. Zero-value fields mean "no
// change".
type StageOutput struct {
	Messages        []llm.Message
	ToolSteps       []ToolStep
	Report          *IncidentReport
	FinalActionPlan string
	Severity        Severity
}

// Apply folds a stage output into a state and returns the successor.
// Messages and ToolSteps are append-only; Report and FinalActionPlan are
// set once; Severity is overwritten when the output carries one. The input
// state is never mutated, so observers can hold old snapshots safely.
func Apply(s State, out StageOutput) State {
	next := s

	if len(out.Messages) > 0 {
		next.Messages = append(s.Messages[:len(s.Messages):len(s.Messages)], out.Messages...)
	}
	if len(out.ToolSteps) > 0 {
		next.ToolSteps = append(s.ToolSteps[:len(s.ToolSteps):len(s.ToolSteps)], out.ToolSteps...)
	}
	if out.Report != nil {
		next.Report = out.Report
	}
	if out.FinalActionPlan != "" {
		next.FinalActionPlan = out.FinalActionPlan
	}
	if out.Severity != "" {
		next.Severity = out.Severity
	}

	return next
}
