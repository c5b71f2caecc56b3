// Package infra provides the infrastructure diagnostic tools: SOP manual
// retrieval and simulated network probes against payment nodes.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/sop"
	"github.com/paymentops/guardian/tools"
)

// SearchSOPManual is the SOP retrieval tool name.
const SearchSOPManual = "search_sop_manual"

// CheckNetworkLatency is the network probe tool name.
const CheckNetworkLatency = "check_network_latency"

// Executor implements the infrastructure diagnostic tools
type Executor struct {
	index *sop.Index
	topK  int
}

// NewExecutor creates an infrastructure tool executor backed by the given
// SOP index. topK <= 0 uses the index default.
func NewExecutor(index *sop.Index, topK int) *Executor {
	return &Executor{index: index, topK: topK}
}

// Execute executes an infrastructure tool call
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall) (tools.Result, error) {
	switch call.Name {
	case SearchSOPManual:
		return e.searchSOPManual(ctx, call)
	case CheckNetworkLatency:
		return e.checkNetworkLatency(ctx, call)
	default:
		return tools.Result{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, fmt.Errorf("unknown tool: %s", call.Name)
	}
}

// ListTools returns the tool definitions for infrastructure diagnostics
func (e *Executor) ListTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        SearchSOPManual,
			Description: "Search standard operating procedures (SOP) for error codes or incident types. Returns specific guidelines with citations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Error code or incident description to search for (e.g., 'E-503')",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        CheckNetworkLatency,
			Description: "Check network latency (ping) to a specific payment node (Bank/VAN).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_node": map[string]any{
						"type":        "string",
						"description": "Node to probe (e.g., 'Shinhan_Bank', 'KIS_VAN')",
					},
				},
				"required": []string{"target_node"},
			},
		},
	}
}

// searchSOPManual retrieves the top SOP passages for the query and formats
// them with citations the model can quote in its report.
func (e *Executor) searchSOPManual(ctx context.Context, call llm.ToolCall) (tools.Result, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return tools.Result{
			CallID: call.ID,
			Error:  "query argument is required",
		}, nil
	}

	hits, err := e.index.Search(ctx, args.Query, e.topK)
	if err != nil {
		return tools.Result{
			CallID: call.ID,
			Error:  fmt.Sprintf("SOP search failed: %v", err),
		}, nil
	}
	if len(hits) == 0 {
		return tools.Result{
			CallID:  call.ID,
			Content: "No matching SOP documents found.",
		}, nil
	}

	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n[Doc %d] Source: %s | Section: %s\nContent: %s\n",
			i+1, hit.SourceID, hit.SectionOrCode, strings.TrimSpace(hit.Text))
	}

	return tools.Result{
		CallID:  call.ID,
		Content: b.String(),
	}, nil
}

// probeResult is the wire shape of a latency probe.
type probeResult struct {
	Target     string `json:"target"`
	Latency    string `json:"latency"`
	Status     string `json:"status"`
	PacketLoss string `json:"packet_loss,omitempty"`
}

// checkNetworkLatency simulates a ping against a payment node. The degraded
// node table mirrors the demo network: Shinhan is slow and lossy, the KIS
// VAN and Samsung card lines are down, everything else is healthy.
func (e *Executor) checkNetworkLatency(_ context.Context, call llm.ToolCall) (tools.Result, error) {
	var args struct {
		TargetNode string `json:"target_node"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil || strings.TrimSpace(args.TargetNode) == "" {
		return tools.Result{
			CallID: call.ID,
			Error:  "target_node argument is required",
		}, nil
	}

	probe := e.probe(args.TargetNode)
	payload, err := json.Marshal(probe)
	if err != nil {
		return tools.Result{CallID: call.ID}, fmt.Errorf("marshal probe result: %w", err)
	}

	return tools.Result{
		CallID:  call.ID,
		Content: string(payload),
	}, nil
}

func (e *Executor) probe(target string) probeResult {
	switch {
	case strings.Contains(target, "Shinhan"):
		return probeResult{Target: target, Latency: "3500ms", Status: "Critical", PacketLoss: "15%"}
	case strings.Contains(target, "KIS"), strings.Contains(target, "Samsung"):
		return probeResult{Target: target, Latency: "Timeout", Status: "Down", PacketLoss: "100%"}
	default:
		return probeResult{Target: target, Latency: "25ms", Status: "Healthy"}
	}
}
