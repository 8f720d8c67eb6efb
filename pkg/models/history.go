package models

import "time"

// HistoryStatus is the state of one node visit in the audit trail.
type HistoryStatus string

const (
	HistoryStatusStarted   HistoryStatus = "started"
	HistoryStatusCompleted HistoryStatus = "completed"
	HistoryStatusFailed    HistoryStatus = "failed"
	HistoryStatusPaused    HistoryStatus = "paused"
)

// HistoryRecord is one append-only audit entry per node visit. The engine
// opens it at node entry and finalizes it exactly once at node exit; nothing
// mutates it afterwards. Detail carries node-specific extras (the agent's
// rendered prompt and response, a human-control node's configuration).
type HistoryRecord struct {
	ID                string         `json:"id"`
	ExecutionID       string         `json:"execution_id"`
	NodeID            string         `json:"node_id"`
	NodeType          NodeType       `json:"node_type"`
	NodeName          string         `json:"node_name,omitempty"`
	Status            HistoryStatus  `json:"status"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	Duration          float64        `json:"duration,omitempty"` // seconds
	Output            string         `json:"output,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	VariablesSnapshot map[string]any `json:"variables_snapshot,omitempty"`
	Detail            map[string]any `json:"detail,omitempty"`
}
