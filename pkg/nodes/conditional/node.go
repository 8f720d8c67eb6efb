// Package conditional implements the branching node. A node is configured
// either with a structured condition list evaluated against the variable
// store, or with a free-form expression evaluated in a sandbox that exposes
// only the execution's variables.
package conditional

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
)

const (
	defaultMatchBranch = "true"
	defaultElseBranch  = "false"
)

type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeIf
}

func (n *Node) Process(ctx context.Context, ec nodes.ExecContext, node *models.Node) (*models.Outcome, error) {
	if conditions, ok := node.Config["conditions"].([]any); ok {
		return n.processStructured(ctx, ec, node, conditions)
	}

	if expression, ok := node.Config["condition"].(string); ok && expression != "" {
		return n.processExpression(ctx, ec, node, expression)
	}

	return models.ErrorOutcome("conditional node requires a condition or a conditions list"), nil
}

// processStructured walks the condition list in order; the first matching
// condition selects its output branch. Nothing matching selects "false".
func (n *Node) processStructured(ctx context.Context, ec nodes.ExecContext, node *models.Node, conditions []any) (*models.Outcome, error) {
	for i, raw := range conditions {
		condition, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		name, _ := condition["variable"].(string)
		operator, _ := condition["operator"].(string)

		value, found, err := ec.Variables.Get(ctx, ec.ExecutionID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read variable %q: %w", name, err)
		}

		if !found {
			continue
		}

		if !evaluate(value, operator, condition["value"]) {
			continue
		}

		branch, _ := condition["output_branch"].(string)
		if branch == "" {
			branch = defaultMatchBranch
		}

		ec.Logger.Debug("Condition matched", "node_id", node.ID, "index", i, "branch", branch)

		return &models.Outcome{
			Status:      models.OutcomeSuccess,
			BranchLabel: branch,
			Output:      fmt.Sprintf("condition %d matched, branch %q", i, branch),
		}, nil
	}

	return &models.Outcome{
		Status:      models.OutcomeSuccess,
		BranchLabel: defaultElseBranch,
		Output:      "no condition matched",
	}, nil
}

// processExpression renders template placeholders inside the expression, then
// evaluates it in a sandbox whose environment is the variable map. The result
// is reduced to a truthy branch label.
func (n *Node) processExpression(ctx context.Context, ec nodes.ExecContext, node *models.Node, expression string) (*models.Outcome, error) {
	rendered, err := ec.Variables.Render(ctx, ec.ExecutionID, expression)
	if err != nil {
		return models.ErrorOutcome(fmt.Sprintf("failed to render condition: %v", err)), nil
	}

	env, err := ec.Variables.GetAll(ctx, ec.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variables: %w", err)
	}

	program, err := expr.Compile(rendered, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return models.ErrorOutcome(fmt.Sprintf("invalid condition %q: %v", rendered, err)), nil
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return models.ErrorOutcome(fmt.Sprintf("condition %q failed: %v", rendered, err)), nil
	}

	branch := defaultElseBranch
	if truthy(result) {
		branch = defaultMatchBranch
	}

	ec.Logger.Debug("Expression evaluated", "node_id", node.ID, "result", result, "branch", branch)

	return &models.Outcome{
		Status:      models.OutcomeSuccess,
		BranchLabel: branch,
		Output:      fmt.Sprintf("condition evaluated to %v", result),
	}, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}
