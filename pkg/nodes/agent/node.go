// Package agent implements the AI agent node. It renders a prompt template
// against the execution's variables, asks the configured model for a
// completion and stores the response under the configured output variable.
package agent

import (
	"context"
	"fmt"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
)

const defaultModel = "gpt-4o-mini"

type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeAgent
}

func (n *Node) Process(ctx context.Context, ec nodes.ExecContext, node *models.Node) (*models.Outcome, error) {
	prompt, _ := node.Config["prompt"].(string)
	if prompt == "" {
		return models.ErrorOutcome("agent node requires a prompt"), nil
	}

	outputVariable, _ := node.Config["outputVariable"].(string)
	if outputVariable == "" {
		return models.ErrorOutcome("agent node requires an output variable name"), nil
	}

	model, _ := node.Config["model"].(string)
	if model == "" {
		model = defaultModel
	}

	rendered, err := ec.Variables.Render(ctx, ec.ExecutionID, prompt)
	if err != nil {
		return models.ErrorOutcome(fmt.Sprintf("failed to render prompt: %v", err)), nil
	}

	ec.Logger.Debug("Calling model", "node_id", node.ID, "model", model)

	response, err := ec.LLM.Generate(ctx, model, rendered)
	if err != nil {
		return models.ErrorOutcome(fmt.Sprintf("model call failed: %v", err)), nil
	}

	err = ec.Variables.Set(ctx, ec.ExecutionID, outputVariable, response, models.InferKind(response), node.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store agent output: %w", err)
	}

	return &models.Outcome{
		Status: models.OutcomeSuccess,
		Output: response,
		Detail: map[string]any{
			"model":           model,
			"prompt":          rendered,
			"output_variable": outputVariable,
		},
	}, nil
}
