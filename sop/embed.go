package sop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"
)

// Embedder turns texts into unit-length vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// maxEmbedResponseSize limits the embeddings response body.
const maxEmbedResponseSize = 10 * 1024 * 1024 // 10MB

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	// BaseURL is the API base (e.g. "https://api.openai.com/v1").
	BaseURL string

	// Model is the embedding model identifier.
	Model string

	// HTTPClient defaults to a 60s-timeout client when nil.
	HTTPClient *http.Client
}

// NewHTTPEmbedder creates an embedder for an OpenAI-compatible endpoint.
func NewHTTPEmbedder(baseURL, model string) *HTTPEmbedder {
	return &HTTPEmbedder{
		BaseURL: baseURL,
		Model:   model,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts the texts and returns one vector per input, in input order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	base := e.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	url := strings.TrimSuffix(base, "/") + "/embeddings"

	body, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxEmbedResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("embeddings API error (status %d): %s", resp.StatusCode, preview)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		out[d.Index] = normalize(d.Embedding)
	}
	return out, nil
}

// HashEmbedder is a deterministic, offline embedding fallback: a hashed
// bag-of-tokens projection. It keeps retrieval working (lexical-overlap
// quality) when no embeddings endpoint is configured, which is all the
// simulation path needs.
type HashEmbedder struct {
	// Dims is the vector dimensionality. Zero means DefaultHashDims.
	Dims int
}

// DefaultHashDims is the default projection size for HashEmbedder.
const DefaultHashDims = 256

// Embed hashes each token of each text into a fixed-size vector.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := e.Dims
	if dims <= 0 {
		dims = DefaultHashDims
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dims)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			sum := h.Sum32()
			bucket := int(sum % uint32(dims))
			// Top bit picks the sign so common tokens don't all pile
			// up positive.
			if sum&0x80000000 != 0 {
				vec[bucket]--
			} else {
				vec[bucket]++
			}
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales a vector to unit length so cosine similarity reduces to
// a dot product at query time.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
