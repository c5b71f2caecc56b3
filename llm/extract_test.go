package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triageShape mirrors the workflow's triage schema for decode tests.
type triageShape struct {
	IsIncident bool   `json:"is_incident"`
	Category   string `json:"category" validate:"required"`
	Reason     string `json:"reason"`
}

func TestDecodeTyped(t *testing.T) {
	got, err := DecodeTyped[triageShape](`{"is_incident": true, "category": "Network", "reason": "E-503"}`)
	require.NoError(t, err)
	assert.True(t, got.IsIncident)
	assert.Equal(t, "Network", got.Category)
}

func TestDecodeTypedMarkdownFence(t *testing.T) {
	got, err := DecodeTyped[triageShape]("```json\n{\"is_incident\": false, \"category\": \"None\", \"reason\": \"info log\"}\n```")
	require.NoError(t, err)
	assert.False(t, got.IsIncident)
}

func TestDecodeTypedNoJSON(t *testing.T) {
	_, err := DecodeTyped[triageShape]("I cannot classify this log.")
	require.Error(t, err)
	assert.True(t, IsSchemaViolation(err))

	var sv *SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "triageShape", sv.Schema)
}

func TestDecodeTypedMalformedJSON(t *testing.T) {
	_, err := DecodeTyped[triageShape](`{"is_incident": "maybe"}`)
	require.Error(t, err)
	assert.True(t, IsSchemaViolation(err))
}

func TestDecodeTypedValidationFailure(t *testing.T) {
	// Decodes fine but misses the required category field.
	_, err := DecodeTyped[triageShape](`{"is_incident": true, "reason": "x"}`)
	require.Error(t, err)
	assert.True(t, IsSchemaViolation(err))
}

// scriptedCompleter returns canned responses without HTTP.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []*Response
	err       error
	requests  []Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func TestExtractTypedAppendsJSONInstruction(t *testing.T) {
	c := &scriptedCompleter{responses: []*Response{
		{Content: `{"is_incident": true, "category": "Network", "reason": "timeout"}`},
	}}

	got, err := ExtractTyped[triageShape](context.Background(), c, "triage", "You classify logs.", []Message{
		{Role: "user", Content: "Log: [ERROR] something"},
	})
	require.NoError(t, err)
	assert.True(t, got.IsIncident)

	require.Len(t, c.requests, 1)
	sys := c.requests[0].Messages[0]
	assert.Equal(t, "system", sys.Role)
	assert.Contains(t, sys.Content, "You classify logs.")
	assert.Contains(t, sys.Content, "single JSON object")
	require.NotNil(t, c.requests[0].Temperature)
	assert.Zero(t, *c.requests[0].Temperature)
}

func TestExtractTypedTransportError(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("connection refused")}

	_, err := ExtractTyped[triageShape](context.Background(), c, "triage", "sys", nil)
	require.Error(t, err)
	assert.False(t, IsSchemaViolation(err))
}

func TestConverseReturnsToolCalls(t *testing.T) {
	c := &scriptedCompleter{responses: []*Response{
		{ToolCalls: []ToolCall{{ID: "call_1", Name: "check_network_latency", Arguments: []byte(`{"target":"Shinhan"}`)}}},
	}}

	msg, err := Converse(context.Background(), c, "diagnosis", "You diagnose incidents.", []Message{
		{Role: "user", Content: "E-503 on Shinhan"},
	}, []ToolDefinition{{Name: "check_network_latency"}})
	require.NoError(t, err)
	assert.Equal(t, "assistant", msg.Role)
	require.True(t, msg.HasToolCalls())
	assert.Equal(t, "check_network_latency", msg.ToolCalls[0].Name)

	// Tool catalog must be forwarded on the wire request.
	require.Len(t, c.requests, 1)
	require.Len(t, c.requests[0].Tools, 1)
}
