// Package scenario manages the simulated payment network: the node table,
// demo failure scenarios, the run registry behind the status API, and the
// runner that binds scenarios to the incident workflow.
package scenario

// Health is the reported state of a payment node.
type Health string

const (
	// HealthNormal means the node is serving traffic.
	HealthNormal Health = "normal"
	// HealthError means the node is failing.
	HealthError Health = "error"
)

// Scenario identifiers accepted by the demo control plane.
const (
	ScenarioNormal        = "normal"
	ScenarioSingleFailure = "single_failure"
	ScenarioTripleFailure = "triple_failure"
)

// nodes is the fixed payment network: the mobile gateway, the clearing
// house, two VAN providers, five banks, and four card issuers.
var nodes = []string{
	"SKT_Gateway",
	"KFTC_Clearing",
	"KIS_VAN",
	"NICE_VAN",
	"Shinhan_Bank",
	"Kookmin_Bank",
	"Woori_Bank",
	"Hana_Bank",
	"Nonghyup_Bank",
	"Samsung_Card",
	"Hyundai_Card",
	"Shinhan_Card",
	"KB_Card",
}

// Nodes returns the node names in display order.
func Nodes() []string {
	out := make([]string, len(nodes))
	copy(out, nodes)
	return out
}

// NormalNodes returns the all-healthy node map.
func NormalNodes() map[string]Health {
	m := make(map[string]Health, len(nodes))
	for _, n := range nodes {
		m[n] = HealthNormal
	}
	return m
}

// Outcome is the effect of applying a scenario: the new node healths, the
// synthetic log that seeds the incident run, and whether a run launches at
// all.
type Outcome struct {
	Nodes     map[string]Health
	ErrorLog  string
	LaunchRun bool
	// LogLine is an immediate status-feed line for scenarios that do not
	// launch a run.
	LogLine string
}

// Apply maps a scenario identifier to its network effect. Node healths
// always start from all-normal; only the named scenario's failures are
// applied on top.
func Apply(scenarioID string) Outcome {
	out := Outcome{Nodes: NormalNodes()}

	switch scenarioID {
	case ScenarioNormal:
		out.LogLine = "System recovery complete."

	case ScenarioSingleFailure:
		out.Nodes["Shinhan_Bank"] = HealthError
		out.ErrorLog = "[ERROR] TIME:14:05 | BANK:Shinhan | CODE:E-503 | MSG:Service Unavailable"
		out.LaunchRun = true

	case ScenarioTripleFailure:
		out.Nodes["KIS_VAN"] = HealthError
		out.Nodes["Samsung_Card"] = HealthError
		out.Nodes["Kookmin_Bank"] = HealthError
		out.ErrorLog = "[CRITICAL] Multi-Fail Detected"
		out.LaunchRun = true

	default:
		out.ErrorLog = "General Error"
		out.LaunchRun = true
	}

	return out
}
