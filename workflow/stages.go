package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/model"
	"github.com/paymentops/guardian/tools"
)

// routingKeywords are the raw-log markers that commit a run to diagnosis.
// Routing scans the original log directly; the structured triage verdict is
// transcript material, not a routing input.
var routingKeywords = []string{"ERROR", "CRITICAL", "Timeout"}

// Stages holds the port dependencies the workflow stages run against.
type Stages struct {
	client llm.Completer
	tools  tools.Executor
	logger *slog.Logger
}

// NewStages creates the stage set.
func NewStages(client llm.Completer, toolExec tools.Executor, logger *slog.Logger) *Stages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stages{
		client: client,
		tools:  toolExec,
		logger: logger,
	}
}

// Triage classifies the raw log. Classification failure is fail-open: the
// event is treated as an incident and the run continues, because missing a
// real outage costs more than over-triaging noise.
func (s *Stages) Triage(ctx context.Context, state State) StageOutput {
	result, err := llm.ExtractTyped[TriageResult](ctx, s.client,
		string(model.CapabilityTriage), TriageSystemPrompt(),
		[]llm.Message{{Role: "user", Content: "Log: " + state.RawLog}})
	if err != nil {
		s.logger.Warn("Triage classification failed, defaulting to incident",
			"run_id", state.RunID, "error", err)
		return StageOutput{
			Messages: []llm.Message{{
				Role:    "user",
				Content: fmt.Sprintf("[Router Error] %v. Defaulting to Incident.", err),
			}},
			Severity: SeverityUnknown,
		}
	}

	return StageOutput{
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("[Router] Verdict: %s (%s)", result.Category, result.Reason),
		}},
		Severity: SeverityUnknown,
	}
}

// RouteAfterTriage decides whether the run proceeds to diagnosis. Pure
// function of the raw log: any routing keyword commits the run.
func RouteAfterTriage(rawLog string) Stage {
	for _, keyword := range routingKeywords {
		if strings.Contains(rawLog, keyword) {
			return StageDiagnosis
		}
	}
	return StageDone
}

// Diagnosis runs one reasoning turn with the tool catalog bound. The
// assistant reply either carries tool calls (answered by the tool stage) or
// is the final analysis text.
func (s *Stages) Diagnosis(ctx context.Context, state State) StageOutput {
	reply, err := llm.Converse(ctx, s.client,
		string(model.CapabilityDiagnosis), DiagnosisSystemPrompt(),
		state.Messages, s.tools.ListTools())
	if err != nil {
		s.logger.Warn("Diagnosis turn failed",
			"run_id", state.RunID, "error", err)
		// A failed turn carries no tool calls, so the run falls through to
		// the report stage and the fallback report path.
		return StageOutput{
			Messages: []llm.Message{{
				Role:    "assistant",
				Content: fmt.Sprintf("[Diagnosis Error] %v", err),
			}},
		}
	}

	return StageOutput{Messages: []llm.Message{reply}}
}

// RouteAfterDiagnosis sends the run to tool execution when the last
// assistant message requests tools, otherwise to the report stage.
func RouteAfterDiagnosis(state State) Stage {
	if len(state.Messages) == 0 {
		return StageReport
	}
	if state.Messages[len(state.Messages)-1].HasToolCalls() {
		return StageToolExec
	}
	return StageReport
}

// ExecuteTools answers every pending tool call of the last assistant
// message, in request order. Each result becomes a role=tool message linked
// by call ID plus a ToolStep evidence record. Tool failures are recorded
// and surfaced to the model; they never abort the run.
func (s *Stages) ExecuteTools(ctx context.Context, state State) StageOutput {
	if len(state.Messages) == 0 {
		return StageOutput{}
	}
	calls := state.Messages[len(state.Messages)-1].ToolCalls

	var out StageOutput
	for _, call := range calls {
		result, err := s.tools.Execute(ctx, call)

		content := result.Content
		isError := false
		switch {
		case err != nil:
			content = fmt.Sprintf("tool execution failed: %v", err)
			isError = true
		case result.Error != "":
			content = result.Error
			isError = true
		}

		out.Messages = append(out.Messages, llm.Message{
			Role:       "tool",
			Name:       call.Name,
			ToolCallID: call.ID,
			Content:    content,
		})
		out.ToolSteps = append(out.ToolSteps, ToolStep{
			CallID:    call.ID,
			Tool:      call.Name,
			Arguments: call.Arguments,
			Result:    content,
			IsError:   isError,
		})
	}

	return out
}

// DeclinePendingTools answers the last assistant message's unanswered tool
// calls with a budget-exhausted notice. OpenAI-compatible backends reject a
// transcript where assistant tool calls have no tool results, so the capped
// path must close them out before the report turn.
func (s *Stages) DeclinePendingTools(state State) StageOutput {
	if len(state.Messages) == 0 {
		return StageOutput{}
	}

	var out StageOutput
	for _, call := range state.Messages[len(state.Messages)-1].ToolCalls {
		out.Messages = append(out.Messages, llm.Message{
			Role:       "tool",
			Name:       call.Name,
			ToolCallID: call.ID,
			Content:    "Tool budget exhausted. Conclude from the evidence gathered so far.",
		})
	}
	return out
}

// Report writes the final structured report over the full diagnosis trail.
// Extraction failure yields the fallback report; a run that reached this
// stage always ends with a well-formed report.
func (s *Stages) Report(ctx context.Context, state State) StageOutput {
	report, err := llm.ExtractTyped[IncidentReport](ctx, s.client,
		string(model.CapabilityReporting), ReportSystemPrompt(), state.Messages)
	if err != nil {
		s.logger.Warn("Report generation failed, using fallback report",
			"run_id", state.RunID, "error", err)
		return fallbackReportOutput(err)
	}

	report.NormalizeMMS()

	return StageOutput{
		Report:          report,
		FinalActionPlan: report.ActionPlan(),
		Severity:        Severity(report.Severity),
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Final report generated: " + report.MMSText,
		}},
	}
}

// fallbackReportOutput is the degraded terminal path: severity Unknown, a
// manual-check action item, and the failure folded into the notification.
func fallbackReportOutput(cause error) StageOutput {
	report := &IncidentReport{
		Severity:    string(SeverityUnknown),
		Location:    "Unknown",
		RootCause:   "Analysis Failed",
		ActionItems: []string{"Manual Check Required"},
		MMSText:     fmt.Sprintf("%s Analysis failed. Manual check required. (%v)", MMSPrefix, cause),
		Evidence:    "N/A",
	}
	report.NormalizeMMS()

	return StageOutput{
		Report:          report,
		FinalActionPlan: "Analysis failed (manual check required)",
		Severity:        SeverityUnknown,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Report generation failed",
		}},
	}
}
