package models

// OutcomeStatus classifies what a node processor asks the engine to do next.
type OutcomeStatus string

const (
	// OutcomeSuccess continues traversal with the next resolvable node.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePaused suspends the execution at the current node.
	OutcomePaused OutcomeStatus = "paused"
	// OutcomeCompleted finishes the execution successfully.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeError fails the execution with ErrorMessage.
	OutcomeError OutcomeStatus = "error"
)

// Outcome is the structured result a node processor returns to the engine.
// BranchLabel, when set, constrains next-edge resolution; NextNodeID, when
// set, bypasses edge resolution entirely.
type Outcome struct {
	Status       OutcomeStatus  `json:"status"`
	BranchLabel  string         `json:"branch_label,omitempty"`
	NextNodeID   string         `json:"next_node_id,omitempty"`
	Output       string         `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
}

// ErrorOutcome builds an error outcome with the given message.
func ErrorOutcome(message string) *Outcome {
	return &Outcome{Status: OutcomeError, ErrorMessage: message}
}
