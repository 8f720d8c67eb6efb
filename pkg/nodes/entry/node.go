// Package entry implements the workflow entry node. It seeds the execution's
// variable store from the node's initial variables and hands control to the
// next node.
package entry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
)

type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeEntry
}

func (n *Node) Process(ctx context.Context, ec nodes.ExecContext, node *models.Node) (*models.Outcome, error) {
	initial := initialVariables(node.Config)

	// Variables supplied when the run was started take precedence over the
	// node's defaults, so only missing names are seeded here.
	seeded := 0

	for name, value := range initial {
		_, exists, err := ec.Variables.Get(ctx, ec.ExecutionID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read variable %q: %w", name, err)
		}

		if exists {
			continue
		}

		err = ec.Variables.Set(ctx, ec.ExecutionID, name, value, models.InferKind(value), node.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to store initial variables: %w", err)
		}

		seeded++
	}

	ec.Logger.Debug("Entry node seeded variables", "node_id", node.ID, "count", seeded)

	return &models.Outcome{
		Status: models.OutcomeSuccess,
		Output: fmt.Sprintf("initialized %d variable(s)", seeded),
	}, nil
}

// initialVariables accepts either an inline object or a JSON-encoded string
// under the "initialVariables" key. Anything unparseable yields an empty map
// so a typo in the definition does not kill the run at its first node.
func initialVariables(config map[string]any) map[string]any {
	raw, ok := config["initialVariables"]
	if !ok {
		return map[string]any{}
	}

	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var parsed map[string]any

		err := json.Unmarshal([]byte(v), &parsed)
		if err != nil {
			return map[string]any{}
		}

		return parsed
	default:
		return map[string]any{}
	}
}
