// Package terminal implements the end node. It materializes the run's final
// output, either from a configured template or as a summary of every
// variable, and completes the execution.
package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
)

// FinalOutputVariable is where the rendered final output is stored so it can
// be fetched after the execution completes.
const FinalOutputVariable = "final_output"

type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeEnd
}

func (n *Node) Process(ctx context.Context, ec nodes.ExecContext, node *models.Node) (*models.Outcome, error) {
	var (
		output string
		err    error
	)

	if templateStr, ok := node.Config["finalOutput"].(string); ok && templateStr != "" {
		output, err = ec.Variables.Render(ctx, ec.ExecutionID, templateStr)
		if err != nil {
			return models.ErrorOutcome(fmt.Sprintf("failed to render final output: %v", err)), nil
		}
	} else {
		output, err = summarize(ctx, ec)
		if err != nil {
			return nil, err
		}
	}

	err = ec.Variables.Set(ctx, ec.ExecutionID, FinalOutputVariable, output, models.VariableKindString, node.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store final output: %w", err)
	}

	ec.Logger.Info("Execution reached end node", "node_id", node.ID)

	return &models.Outcome{
		Status: models.OutcomeCompleted,
		Output: output,
	}, nil
}

// summarize renders the default final output: one "name: value" line per
// variable, in name order.
func summarize(ctx context.Context, ec nodes.ExecContext) (string, error) {
	all, err := ec.Variables.GetAll(ctx, ec.ExecutionID)
	if err != nil {
		return "", fmt.Errorf("failed to load variables: %w", err)
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}

	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %v", name, all[name]))
	}

	return strings.Join(lines, "\n"), nil
}
