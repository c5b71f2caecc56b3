// Package model provides capability-based model selection for workflow stages.
// Instead of hardcoding model names, stages specify capabilities (triage,
// diagnosis, reporting) and the registry resolves them to available models
// with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "gpt-4o-mini", stages specify "triage" or "diagnosis".
type Capability string

const (
	// CapabilityTriage is for fast log classification with structured output.
	CapabilityTriage Capability = "triage"

	// CapabilityDiagnosis is for tool-augmented root-cause reasoning.
	CapabilityDiagnosis Capability = "diagnosis"

	// CapabilityReporting is for structured incident report generation.
	CapabilityReporting Capability = "reporting"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityTriage, CapabilityDiagnosis, CapabilityReporting:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
