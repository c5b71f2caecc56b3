// Package sop provides the standard-operating-procedure knowledge base:
// an immutable document corpus, chunking, embedding, and an in-memory
// similarity index consumed by the diagnosis tools.
package sop

// Document is a single SOP reference document. Immutable once loaded.
type Document struct {
	// ID identifies the document within the corpus.
	ID string `yaml:"id"`

	// Source is the origin document name cited in search results.
	Source string `yaml:"source"`

	// Section is the section label within the source document.
	Section string `yaml:"section"`

	// ErrorCode is the error code this procedure covers, if any.
	ErrorCode string `yaml:"error_code"`

	// Content is the procedure text.
	Content string `yaml:"content"`
}

// SectionOrCode returns the lookup key cited alongside the source:
// the error code when present, otherwise the section label.
func (d Document) SectionOrCode() string {
	if d.ErrorCode != "" {
		return d.ErrorCode
	}
	return d.Section
}

// BuiltinCorpus returns the embedded SOP corpus for the payment network.
// Used whenever no external corpus directory is configured.
func BuiltinCorpus() []Document {
	return []Document{
		{
			ID:        "sop-e503",
			Source:    "SOP_Network_01.pdf",
			Section:   "E-503",
			ErrorCode: "E-503",
			Content: `[E-503] Service Unavailable response procedure
1. Overview: bank or card issuer system overload causing delayed responses.
2. Diagnosis:
   - Confirmed when ping latency exceeds 2000ms.
   - Check for Connection Timeout entries in the gateway log.
3. Actions:
   - Step 1: notify the operations team and the institution owner via SMS/Slack.
   - Step 2: fail the institution's traffic over to the standby line.
   - Step 3: attempt traffic restoration after 10 minutes.`,
		},
		{
			ID:        "sop-triple-fail",
			Source:    "SOP_Emergency_09.pdf",
			Section:   "Critical_Multi",
			ErrorCode: "Triple_Fail",
			Content: `[Triple_Fail] Simultaneous multi-institution outage response
1. Overview: three or more financial institutions unreachable at once. Suspect a VAN gateway fault.
2. Actions:
   - Declare Critical severity immediately.
   - Convene the emergency response bridge and notify the CIO.
   - Publish a customer notice on the homepage and app.
   - Evaluate switchover to the disaster-recovery site.`,
		},
		{
			ID:        "sop-e408",
			Source:    "SOP_VAN_Guide.pdf",
			Section:   "E-408",
			ErrorCode: "E-408",
			Content: `[E-408] Request Timeout (VAN segment)
1. Diagnosis: KIS/NICE VAN provider not responding.
2. Actions:
   - After 3 failed retries, contact the provider hotline.
   - Reroute immediately to the standby VAN provider.`,
		},
		{
			ID:        "sop-e999",
			Source:    "SOP_Database_02.pdf",
			Section:   "E-999",
			ErrorCode: "E-999",
			Content: `[E-999] DB connection pool saturation
1. Diagnosis: connection pool exhausted on the payment WAS tier.
2. Actions:
   - Restart the affected WAS instances.
   - Request emergency pool expansion from the DBA team.`,
		},
		{
			ID:      "sop-escalation",
			Source:  "SOP_Escalation_Policy.pdf",
			Section: "Night_Critical",
			Content: `[Policy] Overnight Critical escalation
Critical-severity incidents occurring between 22:00 and 06:00 are reported
to C-level immediately, without waiting for the morning operations review.`,
		},
	}
}
