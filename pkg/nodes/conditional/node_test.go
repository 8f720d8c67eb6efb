package conditional

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxxllhl2/ai-workflow/pkg/log"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence/file"
	"github.com/ccxxllhl2/ai-workflow/pkg/variables"
)

func newExecContext(t *testing.T, vars map[string]any) nodes.ExecContext {
	t.Helper()

	store := variables.NewStore(file.NewPersistence(t.TempDir()).VariableRepository())
	ec := nodes.ExecContext{
		ExecutionID: "exec-test",
		Variables:   store,
		Logger:      log.WithModule("test"),
	}

	err := store.SetAll(context.Background(), ec.ExecutionID, vars, "start")
	require.NoError(t, err)

	return ec
}

func TestConditionalNode_StructuredFirstMatchWins(t *testing.T) {
	ec := newExecContext(t, map[string]any{"score": 85})
	node := &models.Node{
		ID:   "grade",
		Type: models.NodeTypeIf,
		Config: map[string]any{
			"conditions": []any{
				map[string]any{"variable": "score", "operator": ">=", "value": 90, "output_branch": "excellent"},
				map[string]any{"variable": "score", "operator": ">=", "value": 60, "output_branch": "pass"},
			},
		},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "pass", outcome.BranchLabel)
}

func TestConditionalNode_StructuredNoMatchDefaultsFalse(t *testing.T) {
	ec := newExecContext(t, map[string]any{"score": 10})
	node := &models.Node{
		ID:   "grade",
		Type: models.NodeTypeIf,
		Config: map[string]any{
			"conditions": []any{
				map[string]any{"variable": "score", "operator": ">=", "value": 60},
			},
		},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, "false", outcome.BranchLabel)
}

func TestConditionalNode_StructuredDefaultBranchIsTrue(t *testing.T) {
	ec := newExecContext(t, map[string]any{"ready": true})
	node := &models.Node{
		ID:   "gate",
		Type: models.NodeTypeIf,
		Config: map[string]any{
			"conditions": []any{
				map[string]any{"variable": "ready", "operator": "==", "value": true},
			},
		},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, "true", outcome.BranchLabel)
}

func TestConditionalNode_AbsentVariableSkipsCondition(t *testing.T) {
	ec := newExecContext(t, map[string]any{})
	node := &models.Node{
		ID:   "gate",
		Type: models.NodeTypeIf,
		Config: map[string]any{
			"conditions": []any{
				map[string]any{"variable": "ghost", "operator": "is_empty"},
			},
		},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, "false", outcome.BranchLabel)
}

func TestConditionalNode_Expression(t *testing.T) {
	ec := newExecContext(t, map[string]any{"count": 5, "status": "active"})
	node := &models.Node{
		ID:     "gate",
		Type:   models.NodeTypeIf,
		Config: map[string]any{"condition": `count > 3 && status == "active"`},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "true", outcome.BranchLabel)
}

func TestConditionalNode_ExpressionFalsy(t *testing.T) {
	ec := newExecContext(t, map[string]any{"count": 1})
	node := &models.Node{
		ID:     "gate",
		Type:   models.NodeTypeIf,
		Config: map[string]any{"condition": "count > 3"},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, "false", outcome.BranchLabel)
}

func TestConditionalNode_InvalidExpressionIsErrorOutcome(t *testing.T) {
	ec := newExecContext(t, map[string]any{})
	node := &models.Node{
		ID:     "gate",
		Type:   models.NodeTypeIf,
		Config: map[string]any{"condition": "count >"},
	}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Status)
}

func TestConditionalNode_NoConfigIsErrorOutcome(t *testing.T) {
	ec := newExecContext(t, map[string]any{})
	node := &models.Node{ID: "gate", Type: models.NodeTypeIf}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeError, outcome.Status)
}
