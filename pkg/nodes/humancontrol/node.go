// Package humancontrol implements the human intervention node. It never
// completes by itself: processing always yields a paused outcome, and the
// engine advances past the node only when the execution is explicitly
// resumed.
package humancontrol

import (
	"context"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
)

type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeHumanControl
}

func (n *Node) Process(ctx context.Context, ec nodes.ExecContext, node *models.Node) (*models.Outcome, error) {
	ec.Logger.Info("Execution paused for human intervention", "node_id", node.ID)

	detail := map[string]any{}
	for key, value := range node.Config {
		detail[key] = value
	}

	return &models.Outcome{
		Status: models.OutcomePaused,
		Output: "waiting for human intervention",
		Detail: detail,
	}, nil
}
