// Package config provides configuration constants for e2e tests.
package config

import "time"

// Default connection URLs.
const (
	DefaultBaseURL = "http://localhost:8003"
)

// Default timeouts.
const (
	DefaultStageTimeout = 30 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
	DefaultWaitTimeout  = 90 * time.Second
)

// Config holds the e2e test configuration.
type Config struct {
	// BaseURL is the address of a running guardian service.
	BaseURL string `json:"base_url"`
	// StageTimeout bounds each stage within a scenario.
	StageTimeout time.Duration `json:"stage_timeout"`
	// PollInterval is how often status is polled while a run is in flight.
	PollInterval time.Duration `json:"poll_interval"`
	// WaitTimeout bounds waiting for a workflow run to finish. Simulated
	// transcripts pace themselves, so this is generous.
	WaitTimeout time.Duration `json:"wait_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		StageTimeout: DefaultStageTimeout,
		PollInterval: DefaultPollInterval,
		WaitTimeout:  DefaultWaitTimeout,
	}
}
