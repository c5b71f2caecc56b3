// Package config provides configuration loading and management for Guardian.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paymentops/guardian/model"
)

// Config represents the complete Guardian configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Scenario  ScenarioConfig  `yaml:"scenario"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address (default: ":8003")
	Addr string `yaml:"addr"`
	// ReadTimeout bounds request reads
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds response writes
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig configures LLM endpoints and capability routing
type ModelConfig struct {
	// Endpoints maps endpoint names to their connection settings. An empty
	// map means no live models are configured and runs fall back to
	// simulation.
	Endpoints map[string]model.EndpointConfig `yaml:"endpoints"`
	// Capabilities maps capability names (triage, diagnosis, reporting) to
	// preferred and fallback endpoint lists
	Capabilities map[string]model.CapabilityConfig `yaml:"capabilities"`
	// Temperature controls randomness for diagnosis turns (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// RetrievalConfig configures the SOP retrieval index
type RetrievalConfig struct {
	// ChunkSize is the passage size in runes
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the rune overlap between consecutive passages
	ChunkOverlap int `yaml:"chunk_overlap"`
	// TopK is the number of passages returned per search
	TopK int `yaml:"top_k"`
	// CorpusDir points at an SOP corpus directory (empty = built-in corpus)
	CorpusDir string `yaml:"corpus_dir"`
	// EmbedCacheTTL is how long query embeddings are cached
	EmbedCacheTTL time.Duration `yaml:"embed_cache_ttl"`
	// EmbedModel is the embedding model for live retrieval
	EmbedModel string `yaml:"embed_model"`
	// EmbedURL is the OpenAI-compatible base URL for embeddings
	// (empty = deterministic offline embedder)
	EmbedURL string `yaml:"embed_url"`
}

// ScenarioConfig configures scenario handling
type ScenarioConfig struct {
	// ForceSimulation runs every incident through the canned transcript
	// even when live model endpoints are configured
	ForceSimulation bool `yaml:"force_simulation"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8003",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Endpoints:    map[string]model.EndpointConfig{},
			Capabilities: map[string]model.CapabilityConfig{},
			Temperature:  0.2,
			Timeout:      2 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:     300,
			ChunkOverlap:  50,
			TopK:          3,
			CorpusDir:     "", // Built-in corpus
			EmbedCacheTTL: 10 * time.Minute,
			EmbedModel:    "text-embedding-3-small",
		},
		Scenario: ScenarioConfig{
			ForceSimulation: false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive")
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be non-negative and less than chunk_size")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	for name, cap := range c.Model.Capabilities {
		if !model.Capability(name).IsValid() {
			return fmt.Errorf("model.capabilities: unknown capability %q", name)
		}
		for _, endpoint := range append(append([]string{}, cap.Preferred...), cap.Fallback...) {
			if _, ok := c.Model.Endpoints[endpoint]; !ok {
				return fmt.Errorf("model.capabilities.%s references undefined endpoint %q", name, endpoint)
			}
		}
	}
	return nil
}

// Registry builds a model registry from the configured endpoints and
// capability routing. An empty endpoint map yields a registry with no live
// endpoints, which selects simulation mode.
func (c *Config) Registry() *model.Registry {
	reg := model.NewEmptyRegistry()
	for name, ep := range c.Model.Endpoints {
		epCopy := ep
		reg.SetEndpoint(name, &epCopy)
	}
	for name, cap := range c.Model.Capabilities {
		capCopy := cap
		reg.SetCapability(model.Capability(name), &capCopy)
	}
	return reg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
