// Package models defines the core domain models for graph-based workflow execution.
package models

import "time"

// NodeType identifies the kind of a workflow node. The set is closed: the
// engine dispatches through a static registry keyed by these values, so a new
// kind requires a new processor implementation at compile time.
type NodeType string

const (
	NodeTypeEntry        NodeType = "entry"
	NodeTypeAgent        NodeType = "agent"
	NodeTypeIf           NodeType = "if"
	NodeTypeHumanControl NodeType = "human_control"
	NodeTypeEnd          NodeType = "end"
)

// Node is a single typed step in a workflow graph. Config is an opaque
// per-kind map (prompt text, output variable name, condition list, ...).
type Node struct {
	ID     string         `json:"id"     validate:"required"`
	Type   NodeType       `json:"type"   validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

// Edge is a directed connection between two nodes. BranchLabel selects among
// multiple outgoing edges of a conditional node ("true"/"false" or a
// condition's declared branch); it is empty for unconditional edges.
type Edge struct {
	Source      string `json:"source" validate:"required"`
	Target      string `json:"target" validate:"required"`
	BranchLabel string `json:"branch_label,omitempty"`
}

// Workflow is the externally supplied graph definition. The engine only
// reads it; CRUD lives at the HTTP surface.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Owner       string         `json:"owner"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
