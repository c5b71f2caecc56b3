package infra

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/sop"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	index := sop.NewIndex(sop.BuiltinCorpus(), &sop.HashEmbedder{})
	return NewExecutor(index, 3)
}

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "call-1", Name: name, Arguments: json.RawMessage(args)}
}

func TestListTools(t *testing.T) {
	exec := newTestExecutor(t)

	defs := exec.ListTools()
	require.Len(t, defs, 2)

	names := []string{defs[0].Name, defs[1].Name}
	assert.Contains(t, names, SearchSOPManual)
	assert.Contains(t, names, CheckNetworkLatency)

	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.Equal(t, "object", def.Parameters["type"])
	}
}

func TestSearchSOPManualReturnsCitations(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Execute(context.Background(), call(SearchSOPManual, `{"query":"E-503 Service Unavailable"}`))
	require.NoError(t, err)
	require.Empty(t, result.Error)

	assert.Contains(t, result.Content, "[Doc 1]")
	assert.Contains(t, result.Content, "Source: SOP_Network_01.pdf")
	assert.Contains(t, result.Content, "Section: E-503")
	assert.Contains(t, result.Content, "[Doc 3]")
	assert.Equal(t, "call-1", result.CallID)
}

func TestSearchSOPManualEmptyCorpus(t *testing.T) {
	index := sop.NewIndex(nil, &sop.HashEmbedder{})
	exec := NewExecutor(index, 3)

	result, err := exec.Execute(context.Background(), call(SearchSOPManual, `{"query":"E-503"}`))
	require.NoError(t, err)
	assert.Equal(t, "No matching SOP documents found.", result.Content)
}

func TestSearchSOPManualMissingQuery(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Execute(context.Background(), call(SearchSOPManual, `{}`))
	require.NoError(t, err)
	assert.Contains(t, result.Error, "query argument is required")
}

func TestCheckNetworkLatencyDegradedNodes(t *testing.T) {
	exec := newTestExecutor(t)

	tests := []struct {
		name           string
		target         string
		wantLatency    string
		wantStatus     string
		wantPacketLoss string
	}{
		{"shinhan bank is critical", "Shinhan_Bank", "3500ms", "Critical", "15%"},
		{"shinhan card matches too", "Shinhan_Card", "3500ms", "Critical", "15%"},
		{"kis van is down", "KIS_VAN", "Timeout", "Down", "100%"},
		{"samsung card is down", "Samsung_Card", "Timeout", "Down", "100%"},
		{"other nodes healthy", "Woori_Bank", "25ms", "Healthy", ""},
		{"gateway healthy", "SKT_Gateway", "25ms", "Healthy", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := exec.Execute(context.Background(),
				call(CheckNetworkLatency, `{"target_node":"`+tt.target+`"}`))
			require.NoError(t, err)
			require.Empty(t, result.Error)

			var probe probeResult
			require.NoError(t, json.Unmarshal([]byte(result.Content), &probe))
			assert.Equal(t, tt.target, probe.Target)
			assert.Equal(t, tt.wantLatency, probe.Latency)
			assert.Equal(t, tt.wantStatus, probe.Status)
			assert.Equal(t, tt.wantPacketLoss, probe.PacketLoss)
		})
	}
}

func TestCheckNetworkLatencyMissingTarget(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Execute(context.Background(), call(CheckNetworkLatency, `{}`))
	require.NoError(t, err)
	assert.Contains(t, result.Error, "target_node argument is required")
}

func TestUnknownToolName(t *testing.T) {
	exec := newTestExecutor(t)

	result, err := exec.Execute(context.Background(), call("reboot_everything", `{}`))
	require.Error(t, err)
	assert.Contains(t, result.Error, "unknown tool")
}
