package terminal

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

func newExecContext(t *testing.T) nodes.ExecContext {
	t.Helper()

	store := variables.NewStore(file.NewPersistence(t.TempDir()).VariableRepository())

	return nodes.ExecContext{
		ExecutionID: "exec-test",
		Variables:   store,
		Logger:      log.WithModule("test"),
	}
}

func TestTerminalNode_RendersConfiguredTemplate(t *testing.T) {
	ec := newExecContext(t)
	ctx := context.Background()

	err := ec.Variables.Set(ctx, ec.ExecutionID, "summary", "all good", models.VariableKindString, "agent-1")
	require.NoError(t, err)

	node := &models.Node{
		ID:     "finish",
		Type:   models.NodeTypeEnd,
		Config: map[string]any{"finalOutput": "Result: {{summary}}"},
	}

	outcome, err := NewNode().Process(ctx, ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	assert.Equal(t, "Result: all good", outcome.Output)

	value, found, err := ec.Variables.Get(ctx, ec.ExecutionID, FinalOutputVariable)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Result: all good", value)
}

func TestTerminalNode_DefaultOutputListsVariablesSorted(t *testing.T) {
	ec := newExecContext(t)
	ctx := context.Background()

	require.NoError(t, ec.Variables.Set(ctx, ec.ExecutionID, "beta", "2", models.VariableKindString, "n"))
	require.NoError(t, ec.Variables.Set(ctx, ec.ExecutionID, "alpha", "1", models.VariableKindString, "n"))

	node := &models.Node{ID: "finish", Type: models.NodeTypeEnd}

	outcome, err := NewNode().Process(ctx, ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	assert.Equal(t, "alpha: 1\nbeta: 2", outcome.Output)
}

func TestTerminalNode_NoVariablesProducesEmptyOutput(t *testing.T) {
	ec := newExecContext(t)
	node := &models.Node{ID: "finish", Type: models.NodeTypeEnd}

	outcome, err := NewNode().Process(context.Background(), ec, node)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.Status)
	assert.Empty(t, outcome.Output)
}
