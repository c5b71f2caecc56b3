package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/metrics"
)

// MaxRecordedParamsLength is the max length for serialized parameters stored in a record.
const MaxRecordedParamsLength = 1000

// MaxRecordedResultLength is the max length for result content stored in a record.
const MaxRecordedResultLength = 2000

// DefaultCallLogCapacity bounds the in-memory call log.
const DefaultCallLogCapacity = 256

// CallRecord captures one tool execution for run transcripts and debugging.
type CallRecord struct {
	CallID      string    `json:"call_id"`
	ToolName    string    `json:"tool_name"`
	Parameters  string    `json:"parameters"`
	Result      string    `json:"result"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// CallLog is a bounded in-memory record of recent tool executions. When
// full, the oldest records are dropped.
type CallLog struct {
	mu       sync.RWMutex
	records  []CallRecord
	capacity int
}

// NewCallLog creates a call log. capacity <= 0 uses DefaultCallLogCapacity.
func NewCallLog(capacity int) *CallLog {
	if capacity <= 0 {
		capacity = DefaultCallLogCapacity
	}
	return &CallLog{capacity: capacity}
}

// Append adds a record, evicting the oldest when at capacity.
func (l *CallLog) Append(record CallRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
}

// Records returns a copy of the stored records, oldest first.
func (l *CallLog) Records() []CallRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]CallRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of stored records.
func (l *CallLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// RecordingExecutor wraps an Executor and records each call to a CallLog
// and the tool metrics. A nil log disables transcript recording; metrics
// are always emitted.
type RecordingExecutor struct {
	inner  Executor
	log    *CallLog
	logger *slog.Logger
}

// NewRecordingExecutor wraps an executor with tool call recording.
func NewRecordingExecutor(inner Executor, log *CallLog) *RecordingExecutor {
	return &RecordingExecutor{
		inner:  inner,
		log:    log,
		logger: slog.Default(),
	}
}

// Execute runs the underlying tool executor and records the call.
func (r *RecordingExecutor) Execute(ctx context.Context, call llm.ToolCall) (Result, error) {
	startedAt := time.Now()

	result, execErr := r.inner.Execute(ctx, call)

	completedAt := time.Now()
	duration := completedAt.Sub(startedAt)

	status := "success"
	var errMsg string
	if execErr != nil {
		status = "error"
		errMsg = execErr.Error()
	} else if result.Error != "" {
		status = "error"
		errMsg = result.Error
	}

	metrics.ToolCallsTotal.WithLabelValues(call.Name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(call.Name).Observe(duration.Seconds())

	if r.log != nil {
		r.log.Append(CallRecord{
			CallID:      call.ID,
			ToolName:    call.Name,
			Parameters:  truncate(string(call.Arguments), MaxRecordedParamsLength),
			Result:      truncate(result.Content, MaxRecordedResultLength),
			Status:      status,
			Error:       errMsg,
			StartedAt:   startedAt,
			CompletedAt: completedAt,
			DurationMs:  duration.Milliseconds(),
		})
	}

	if status == "error" {
		r.logger.Warn("Tool call failed",
			"tool", call.Name,
			"call_id", call.ID,
			"error", errMsg)
	}

	return result, execErr
}

// ListTools delegates to the inner executor.
func (r *RecordingExecutor) ListTools() []llm.ToolDefinition {
	return r.inner.ListTools()
}

// truncate caps s at maxLen runes for stored previews, so a cut never
// splits a multi-byte character.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
