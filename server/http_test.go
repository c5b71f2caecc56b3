package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/guardian/scenario"
)

func newTestServer(t *testing.T) (*httptest.Server, *scenario.Registry) {
	t.Helper()

	registry := scenario.NewRegistry()
	runner := scenario.NewRunner(registry, nil, scenario.NewSimulator(registry, time.Millisecond))
	handler := NewHandler(registry, runner, nil)

	mux := http.NewServeMux()
	handler.RegisterHTTPHandlers(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, registry
}

func postScenario(t *testing.T, url, scenarioType string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"scenario_type": scenarioType})
	resp, err := http.Post(url+"/set_scenario", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func waitIdle(t *testing.T, registry *scenario.Registry) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !registry.Processing() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not finish")
}

func TestStatusBeforeAnyScenario(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap scenario.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "normal", snap.Scenario)
	assert.False(t, snap.Processing)
	assert.Len(t, snap.Nodes, 13)
	assert.Empty(t, snap.AgentLogs)
	assert.NotEmpty(t, snap.Timestamp)
}

func TestSetScenarioSingleFailureAccepted(t *testing.T) {
	server, registry := newTestServer(t)

	resp := postScenario(t, server.URL, "single_failure")
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var trigger struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trigger))
	assert.Equal(t, "accepted", trigger.Status)

	// The node map flips immediately, visible on the next poll.
	snap := registry.Snapshot()
	assert.Equal(t, scenario.HealthError, snap.Nodes["Shinhan_Bank"])
	assert.Equal(t, "single_failure", snap.Scenario)

	waitIdle(t, registry)
	logs := strings.Join(registry.Snapshot().AgentLogs, "\n")
	assert.Contains(t, logs, "[Done]")
}

func TestSetScenarioNormalIsOK(t *testing.T) {
	server, registry := newTestServer(t)

	resp := postScenario(t, server.URL, "normal")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var trigger struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trigger))
	assert.Equal(t, "ok", trigger.Status)
	assert.False(t, registry.Processing())
}

func TestSetScenarioBusyConflict(t *testing.T) {
	server, registry := newTestServer(t)

	// Claim the run slot directly so the next trigger collides.
	require.True(t, registry.TryBegin())
	defer registry.End()

	resp := postScenario(t, server.URL, "single_failure")
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var trigger struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trigger))
	assert.Equal(t, "busy", trigger.Status)
}

func TestSetScenarioValidation(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("invalid json", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/set_scenario", "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing scenario_type", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/set_scenario", "application/json",
			strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"scenario_type":"` + strings.Repeat("x", maxRequestBodySize+1) + `"}`
		resp, err := http.Post(server.URL+"/set_scenario", "application/json",
			strings.NewReader(big))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestSetScenarioRequiresPost(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/set_scenario")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusIdempotent(t *testing.T) {
	server, registry := newTestServer(t)

	resp := postScenario(t, server.URL, "triple_failure")
	resp.Body.Close()
	waitIdle(t, registry)

	first := registry.Snapshot()
	second := registry.Snapshot()

	// Polling never mutates: node map, scenario, and feed stay identical.
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.AgentLogs, second.AgentLogs)
	assert.Equal(t, first.Scenario, second.Scenario)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestLoggingPreservesStatus(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := RequestLogging(nil, inner)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
