package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Capability
	}{
		{"triage", "triage", CapabilityTriage},
		{"diagnosis", "diagnosis", CapabilityDiagnosis},
		{"reporting", "reporting", CapabilityReporting},
		{"unknown", "planning", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCapability(tt.input))
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityTriage: {
				Preferred: []string{"fast-model"},
				Fallback:  []string{"backup-model"},
			},
		},
		map[string]*EndpointConfig{
			"fast-model":   {Provider: "openai", Model: "fast"},
			"backup-model": {Provider: "ollama", Model: "backup"},
		},
	)
	r.SetDefault("fast-model")

	assert.Equal(t, "fast-model", r.Resolve(CapabilityTriage))
	// Unknown capability falls back to default.
	assert.Equal(t, "fast-model", r.Resolve(CapabilityReporting))
}

func TestRegistryFallbackChain(t *testing.T) {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityDiagnosis: {
				Preferred: []string{"a", "b"},
				Fallback:  []string{"c"},
			},
		},
		nil,
	)

	assert.Equal(t, []string{"a", "b", "c"}, r.GetFallbackChain(CapabilityDiagnosis))
}

func TestCircuitBreaker(t *testing.T) {
	r := NewRegistry(nil, map[string]*EndpointConfig{
		"m": {Provider: "openai", Model: "m"},
	})

	require.True(t, r.IsEndpointAvailable("m"))

	// Failures below the threshold keep the circuit closed.
	r.MarkEndpointFailure("m")
	r.MarkEndpointFailure("m")
	assert.True(t, r.IsEndpointAvailable("m"))

	// Third consecutive failure opens the circuit.
	r.MarkEndpointFailure("m")
	assert.False(t, r.IsEndpointAvailable("m"))

	health := r.GetEndpointHealth("m")
	require.NotNil(t, health)
	assert.True(t, health.CircuitOpen)
	assert.Equal(t, 3, health.FailureCount)

	// Success closes the circuit again.
	r.MarkEndpointSuccess("m")
	assert.True(t, r.IsEndpointAvailable("m"))
	health = r.GetEndpointHealth("m")
	assert.Zero(t, health.FailureCount)
}

func TestCircuitHalfOpenAfterRecoveryTimeout(t *testing.T) {
	r := NewRegistry(nil, map[string]*EndpointConfig{
		"m": {Provider: "openai", Model: "m"},
	})
	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("m")
	}
	require.False(t, r.IsEndpointAvailable("m"))

	// Backdate the circuit open time past the recovery timeout.
	r.health.mu.Lock()
	r.health.statuses["m"].CircuitOpenedAt = time.Now().Add(-time.Minute)
	r.health.mu.Unlock()

	assert.True(t, r.IsEndpointAvailable("m"))
}

func TestAvailableFallbackChainSkipsOpenCircuits(t *testing.T) {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityReporting: {Preferred: []string{"a"}, Fallback: []string{"b"}},
		},
		map[string]*EndpointConfig{
			"a": {Provider: "openai", Model: "a"},
			"b": {Provider: "ollama", Model: "b"},
		},
	)

	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("a")
	}
	assert.Equal(t, []string{"b"}, r.GetAvailableFallbackChain(CapabilityReporting))

	// All circuits open: return the full chain rather than nothing.
	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("b")
	}
	assert.Equal(t, []string{"a", "b"}, r.GetAvailableFallbackChain(CapabilityReporting))
}

func TestHasLiveEndpoints(t *testing.T) {
	empty := NewEmptyRegistry()
	assert.False(t, empty.HasLiveEndpoints())

	r := NewRegistry(nil, map[string]*EndpointConfig{
		"m": {Provider: "openai", Model: "m"},
	})
	assert.True(t, r.HasLiveEndpoints())

	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("m")
	}
	assert.False(t, r.HasLiveEndpoints())
}
