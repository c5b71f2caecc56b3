// Package main implements a mock LLM server for offline workflow testing.
// It serves OpenAI-compatible /v1/chat/completions responses from JSON
// fixture files, routing by the "model" field in the request, and answers
// /v1/embeddings with deterministic hashed vectors. This eliminates the
// need for a real LLM while exercising the live wire path end to end.
//
// Usage:
//
//	mock-llm -fixtures /path/to/fixtures -port 11434
//
// Fixture files are JSON named by model (e.g., "mock-triage.json" maps to
// model "mock-triage"). A fixture is either raw assistant content (the
// whole file becomes the message content, useful for structured extraction
// responses) or an object with "content" and/or "tool_calls" keys, which
// becomes the assistant message verbatim:
//
//	{"content": "", "tool_calls": [{"id": "t1", "type": "function",
//	 "function": {"name": "check_network_latency",
//	              "arguments": "{\"target\":\"Shinhan_Bank\"}"}}]}
//
// Sequential fixtures: if numbered files exist (e.g., "mock-diagnosis.1.json",
// "mock-diagnosis.2.json"), the Nth call to that model returns the Nth
// fixture. After exhausting numbered fixtures, the base "mock-diagnosis.json"
// is used as a repeating fallback. This drives the diagnosis loop: a tool
// call turn first, then a conclusion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paymentops/guardian/sop"
)

// chatRequest is the subset of the OpenAI chat request the mock inspects.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []any         `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// fixture is one scripted assistant turn.
type fixture struct {
	Content   string
	ToolCalls []toolCall
}

// capturedRequest stores the key fields of an incoming request so tests
// can verify what the workflow actually sent.
type capturedRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	ToolCount int           `json:"tool_count"`
	CallIndex int           `json:"call_index"` // 1-indexed per-model call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]fixture // model name -> ordered fixture sequence
	embedder *sop.HashEmbedder
	logger   *slog.Logger
	calls    atomic.Int64

	mu            sync.Mutex
	modelCalls    map[string]int
	modelRequests map[string][]capturedRequest
}

func newServer(fixtures map[string][]fixture) *server {
	return &server{
		fixtures:      fixtures,
		embedder:      &sop.HashEmbedder{},
		logger:        slog.Default(),
		modelCalls:    make(map[string]int),
		modelRequests: make(map[string][]capturedRequest),
	}
}

// nextCall bumps the per-model counter and records the request, returning
// the 0-indexed call number for fixture selection.
func (s *server) nextCall(model string, req chatRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.modelCalls[model]
	s.modelCalls[model] = idx + 1
	s.modelRequests[model] = append(s.modelRequests[model], capturedRequest{
		Model:     model,
		Messages:  req.Messages,
		ToolCount: len(req.Tools),
		CallIndex: idx + 1,
		Timestamp: time.Now().UnixMilli(),
	})
	return idx
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
		os.Exit(1)
	}
	for model, seq := range fixtures {
		logger.Info("Loaded fixture model", "model", model, "fixtures", len(seq))
	}

	s := newServer(fixtures)
	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Mock LLM server listening", "addr", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", s.handleEmbeddings)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /requests", s.handleRequests)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)

	// Resolve fixture sequence: exact model name, then stripped "mock-" prefix.
	seq, ok := s.fixtures[req.Model]
	if !ok {
		seq, ok = s.fixtures[strings.TrimPrefix(req.Model, "mock-")]
	}
	if !ok {
		s.logger.Warn("No fixture for model", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	callIndex := s.nextCall(req.Model, req)
	fix := seq[len(seq)-1] // repeat the last fixture once exhausted
	if callIndex < len(seq) {
		fix = seq[callIndex]
	}

	s.logger.Info("Serving fixture",
		"call", callNum,
		"model", req.Model,
		"call_index", callIndex+1,
		"fixtures", len(seq),
		"tool_calls", len(fix.ToolCalls))

	finishReason := "stop"
	if len(fix.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}

	writeJSON(w, map[string]any{
		"id":      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]any{{
			"index": 0,
			"message": chatMessage{
				Role:      "assistant",
				Content:   fix.Content,
				ToolCalls: fix.ToolCalls,
			},
			"finish_reason": finishReason,
		}},
		"usage": map[string]int{
			"prompt_tokens":     len(fix.Content) / 4, // rough estimate
			"completion_tokens": len(fix.Content) / 4,
			"total_tokens":      len(fix.Content) / 2,
		},
	})
}

// handleEmbeddings answers with deterministic hashed vectors, so retrieval
// behaves identically across runs.
func (s *server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string          `json:"model"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Input may be a single string or an array of strings.
	var texts []string
	if err := json.Unmarshal(req.Input, &texts); err != nil {
		var single string
		if err := json.Unmarshal(req.Input, &single); err != nil {
			http.Error(w, "input must be a string or array of strings", http.StatusBadRequest)
			return
		}
		texts = []string{single}
	}

	vectors, err := s.embedder.Embed(r.Context(), texts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := make([]map[string]any, len(vectors))
	for i, vec := range vectors {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
	}
	writeJSON(w, map[string]any{"object": "list", "model": req.Model, "data": data})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	var models []map[string]string
	for name := range s.fixtures {
		models = append(models, map[string]string{
			"id":       name,
			"object":   "model",
			"owned_by": "mock-llm",
		})
	}
	writeJSON(w, map[string]any{"object": "list", "data": models})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	callsByModel := make(map[string]int, len(s.modelCalls))
	for model, count := range s.modelCalls {
		callsByModel[model] = count
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns captured request bodies for test assertions.
// Optional query params: model (filter by model name) and call (filter by
// 1-indexed call number).
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.modelRequests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter > 0 && req.CallIndex != callFilter {
				continue
			}
			result[model] = append(result[model], req)
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": result})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// numberedFileRe matches files like "mock-diagnosis.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// parseFixture interprets file content: an object carrying "content" or
// "tool_calls" keys becomes the assistant message verbatim, anything else
// (including structured-extraction JSON) is raw assistant content.
func parseFixture(data []byte) fixture {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		_, hasContent := probe["content"]
		_, hasToolCalls := probe["tool_calls"]
		if hasContent || hasToolCalls {
			var msg struct {
				Content   string     `json:"content"`
				ToolCalls []toolCall `json:"tool_calls"`
			}
			if err := json.Unmarshal(data, &msg); err == nil {
				return fixture{Content: msg.Content, ToolCalls: msg.ToolCalls}
			}
		}
	}
	return fixture{Content: string(data)}
}

// loadFixtures reads JSON files from dir and returns a map of model name to
// fixture sequence: numbered files (model.1.json, model.2.json, ...) in
// numeric order, then the base file (model.json) as the repeating fallback.
func loadFixtures(dir string) (map[string][]fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	base := make(map[string]fixture)
	numbered := make(map[string]map[int]fixture)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", name)
		}
		fix := parseFixture(data)

		if m := numberedFileRe.FindStringSubmatch(name); m != nil {
			model := m[1]
			index, _ := strconv.Atoi(m[2])
			if numbered[model] == nil {
				numbered[model] = make(map[int]fixture)
			}
			numbered[model][index] = fix
			continue
		}
		base[strings.TrimSuffix(name, ".json")] = fix
	}

	models := make(map[string]bool)
	for m := range base {
		models[m] = true
	}
	for m := range numbered {
		models[m] = true
	}

	fixtures := make(map[string][]fixture, len(models))
	for model := range models {
		var seq []fixture
		if byIndex, ok := numbered[model]; ok {
			indices := make([]int, 0, len(byIndex))
			for idx := range byIndex {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, byIndex[idx])
			}
		}
		if fix, ok := base[model]; ok {
			seq = append(seq, fix)
		}
		fixtures[model] = seq
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
