// Package graph resolves traversal over a workflow's node/edge definition:
// the entry node, nodes by id, and the next node from a source node given an
// optional branch label.
package graph

import (
	"errors"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
)

var (
	// ErrNoEntryNode indicates the workflow definition has no entry node.
	ErrNoEntryNode = errors.New("no entry node found in workflow")

	// ErrNodeNotFound indicates an edge or anchor references a node id that
	// does not exist in the definition.
	ErrNodeNotFound = errors.New("node not found in workflow")
)

// Error wraps a structural graph failure with the offending workflow.
type Error struct {
	WorkflowID string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed workflow graph %s: %v", e.WorkflowID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FindEntry returns the first node of kind entry, or ErrNoEntryNode.
func FindEntry(workflow *models.Workflow) (*models.Node, error) {
	for _, node := range workflow.Nodes {
		if node.Type == models.NodeTypeEntry {
			return node, nil
		}
	}

	return nil, &Error{WorkflowID: workflow.ID, Err: ErrNoEntryNode}
}

// FindByID returns the node with the given id, or ErrNodeNotFound.
func FindByID(workflow *models.Workflow, id string) (*models.Node, error) {
	if node := workflow.NodeByID(id); node != nil {
		return node, nil
	}

	return nil, &Error{WorkflowID: workflow.ID, Err: fmt.Errorf("%w: %s", ErrNodeNotFound, id)}
}

// FindNext resolves the target of the first edge leaving sourceID. When
// branchLabel is non-empty the edge's label must match it. Edge declaration
// order is significant: with several candidate edges, the first one wins.
// Returns ("", false) when no edge matches.
func FindNext(workflow *models.Workflow, sourceID, branchLabel string) (string, bool) {
	for _, edge := range workflow.Edges {
		if edge.Source != sourceID {
			continue
		}

		if branchLabel != "" && edge.BranchLabel != branchLabel {
			continue
		}

		return edge.Target, true
	}

	return "", false
}
