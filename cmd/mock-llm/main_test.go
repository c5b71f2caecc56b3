package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-triage.json", `{"is_incident":true,"category":"Incident"}`)
	writeFixture(t, dir, "mock-report.json", `{"severity":"Critical"}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 models, got %d", len(fixtures))
	}

	// Each model should have exactly 1 fixture (the base)
	for model, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("model %q: expected 1 fixture, got %d", model, len(seq))
		}
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()

	// Numbered fixtures for diagnosis (tool call first, then conclusion)
	writeFixture(t, dir, "mock-diagnosis.1.json",
		`{"content":"","tool_calls":[{"id":"t1","type":"function","function":{"name":"check_network_latency","arguments":"{\"target\":\"Shinhan_Bank\"}"}}]}`)
	writeFixture(t, dir, "mock-diagnosis.2.json", `{"content":"Root cause identified"}`)
	// Base fallback
	writeFixture(t, dir, "mock-diagnosis.json", `{"content":"fallback conclusion"}`)

	// Non-sequential model
	writeFixture(t, dir, "mock-triage.json", `{"is_incident":true}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	// Diagnosis should have 3 entries: .1, .2, base
	seq := fixtures["mock-diagnosis"]
	if len(seq) != 3 {
		t.Fatalf("mock-diagnosis: expected 3 fixtures, got %d", len(seq))
	}

	// Verify order: numbered first (sorted), then base
	if len(seq[0].ToolCalls) != 1 || seq[0].ToolCalls[0].Function.Name != "check_network_latency" {
		t.Errorf("fixture[0] should carry the latency tool call, got: %+v", seq[0])
	}
	if seq[1].Content != "Root cause identified" {
		t.Errorf("fixture[1] should be the conclusion, got: %q", seq[1].Content)
	}
	if seq[2].Content != "fallback conclusion" {
		t.Errorf("fixture[2] should be the fallback, got: %q", seq[2].Content)
	}

	if len(fixtures["mock-triage"]) != 1 {
		t.Fatalf("mock-triage: expected 1 fixture, got %d", len(fixtures["mock-triage"]))
	}
}

func TestLoadFixtures_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-triage.json", `{not json`)

	if _, err := loadFixtures(dir); err == nil {
		t.Fatal("expected error for invalid JSON fixture")
	}
}

func TestLoadFixtures_Empty(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Fatal("expected error for empty fixture dir")
	}
}

func TestParseFixture(t *testing.T) {
	// Structured-extraction JSON stays raw content.
	raw := `{"is_incident":true,"category":"Incident","reason":"E-503"}`
	fix := parseFixture([]byte(raw))
	if fix.Content != raw {
		t.Errorf("extraction fixture should be raw content, got: %q", fix.Content)
	}
	if len(fix.ToolCalls) != 0 {
		t.Errorf("extraction fixture should have no tool calls")
	}

	// Message-shaped JSON becomes the assistant message.
	fix = parseFixture([]byte(`{"content":"done","tool_calls":[{"id":"t1","type":"function","function":{"name":"search_sop_manual","arguments":"{\"query\":\"E-503\"}"}}]}`))
	if fix.Content != "done" {
		t.Errorf("expected content 'done', got %q", fix.Content)
	}
	if len(fix.ToolCalls) != 1 || fix.ToolCalls[0].Function.Name != "search_sop_manual" {
		t.Errorf("expected search_sop_manual tool call, got: %+v", fix.ToolCalls)
	}
}

func TestChatCompletions_Sequential(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-diagnosis.1.json",
		`{"content":"","tool_calls":[{"id":"t1","type":"function","function":{"name":"check_network_latency","arguments":"{\"target\":\"Shinhan_Bank\"}"}}]}`)
	writeFixture(t, dir, "mock-diagnosis.2.json", `{"content":"Shinhan gateway degraded"}`)

	srv := newTestServer(t, dir)
	defer srv.Close()

	// First call returns the tool call turn.
	resp := postChat(t, srv.URL, `{"model":"mock-diagnosis","messages":[{"role":"user","content":"[ERROR] TIME:14:05"}]}`)
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "check_network_latency" {
		t.Fatalf("call 1: expected latency tool call, got: %+v", msg)
	}
	if resp.Choices[0].FinishReason != "tool_calls" {
		t.Errorf("call 1: expected finish_reason tool_calls, got %q", resp.Choices[0].FinishReason)
	}

	// Second call returns the conclusion.
	resp = postChat(t, srv.URL, `{"model":"mock-diagnosis","messages":[{"role":"tool","content":"latency 3500ms"}]}`)
	msg = resp.Choices[0].Message
	if msg.Content != "Shinhan gateway degraded" || len(msg.ToolCalls) != 0 {
		t.Fatalf("call 2: expected conclusion, got: %+v", msg)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("call 2: expected finish_reason stop, got %q", resp.Choices[0].FinishReason)
	}

	// Third call repeats the last fixture.
	resp = postChat(t, srv.URL, `{"model":"mock-diagnosis","messages":[]}`)
	if resp.Choices[0].Message.Content != "Shinhan gateway degraded" {
		t.Fatalf("call 3: expected repeated fixture, got: %+v", resp.Choices[0].Message)
	}
}

func TestChatCompletions_UnknownModel(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-triage.json", `{"is_incident":true}`)

	srv := newTestServer(t, dir)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"model":"nope","messages":[]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEmbeddings(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-triage.json", `{"is_incident":true}`)

	srv := newTestServer(t, dir)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/embeddings", "application/json",
		strings.NewReader(`{"model":"mock-embed","input":["E-503 Service Unavailable","timeout"]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(body.Data))
	}
	if len(body.Data[0].Embedding) == 0 {
		t.Fatal("expected non-empty embedding vector")
	}
	if body.Data[1].Index != 1 {
		t.Errorf("expected index 1, got %d", body.Data[1].Index)
	}
}

func TestStatsAndRequests(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-triage.json", `{"is_incident":true}`)

	srv := newTestServer(t, dir)
	defer srv.Close()

	postChat(t, srv.URL, `{"model":"mock-triage","messages":[{"role":"user","content":"first"}]}`)
	postChat(t, srv.URL, `{"model":"mock-triage","messages":[{"role":"user","content":"second"}]}`)

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCalls != 2 || stats.CallsByModel["mock-triage"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	reqResp, err := http.Get(srv.URL + "/requests?model=mock-triage&call=2")
	if err != nil {
		t.Fatalf("get requests: %v", err)
	}
	defer reqResp.Body.Close()
	var captured struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	if err := json.NewDecoder(reqResp.Body).Decode(&captured); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	reqs := captured.RequestsByModel["mock-triage"]
	if len(reqs) != 1 {
		t.Fatalf("expected 1 captured request for call 2, got %d", len(reqs))
	}
	if reqs[0].Messages[0].Content != "second" {
		t.Errorf("expected second call capture, got: %+v", reqs[0])
	}
}

// --- helpers ---

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func newTestServer(t *testing.T, fixtureDir string) *httptest.Server {
	t.Helper()
	fixtures, err := loadFixtures(fixtureDir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	return httptest.NewServer(newServer(fixtures).routes())
}

// chatResponse mirrors the JSON written by handleChatCompletions.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func postChat(t *testing.T, baseURL, body string) chatResponse {
	t.Helper()
	resp, err := http.Post(baseURL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat completions: status %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if len(out.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(out.Choices))
	}
	return out
}
