package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/guardian/llm"
	_ "github.com/paymentops/guardian/llm/providers"
	"github.com/paymentops/guardian/model"
)

// chatFixture builds an OpenAI-compatible chat completion body.
func chatFixture(content string, toolCalls ...map[string]any) map[string]any {
	msg := map[string]any{"role": "assistant", "content": content}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "test-model",
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newTestRegistry(url string) *model.Registry {
	r := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityDiagnosis: {Preferred: []string{"test-model"}},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: url, Model: "test-model"},
		},
	)
	return r
}

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		json.NewEncoder(w).Encode(chatFixture("analysis complete"))
	}))
	defer srv.Close()

	client := llm.NewClient(newTestRegistry(srv.URL))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "diagnosis",
		Messages:   []llm.Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "analysis complete", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClientCompleteParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatFixture("", map[string]any{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      "search_sop_manual",
				"arguments": `{"query":"E-503"}`,
			},
		}))
	}))
	defer srv.Close()

	client := llm.NewClient(newTestRegistry(srv.URL))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "diagnosis",
		Messages:   []llm.Message{{Role: "user", Content: "investigate"}},
		Tools:      []llm.ToolDefinition{{Name: "search_sop_manual"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_sop_manual", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"E-503"}`, string(resp.ToolCalls[0].Arguments))
}

func TestClientRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(chatFixture("recovered"))
	}))
	defer srv.Close()

	client := llm.NewClient(newTestRegistry(srv.URL), llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1,
		MaxBackoff:        time.Millisecond,
	}))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "diagnosis",
		Messages:   []llm.Message{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientFatalErrorSkipsRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := llm.NewClient(newTestRegistry(srv.URL))
	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "diagnosis",
		Messages:   []llm.Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientValidatesRequest(t *testing.T) {
	client := llm.NewClient(newTestRegistry("http://unused"))

	_, err := client.Complete(context.Background(), llm.Request{Capability: "diagnosis"})
	assert.ErrorContains(t, err, "at least one message")

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "x"}},
	})
	assert.ErrorContains(t, err, "capability")
}
