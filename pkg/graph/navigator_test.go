package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
)

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry},
			{ID: "check", Type: models.NodeTypeIf},
			{ID: "yes", Type: models.NodeTypeAgent},
			{ID: "no", Type: models.NodeTypeAgent},
			{ID: "done", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "check"},
			{Source: "check", Target: "yes", BranchLabel: "true"},
			{Source: "check", Target: "no", BranchLabel: "false"},
			{Source: "yes", Target: "done"},
			{Source: "no", Target: "done"},
		},
	}
}

func TestFindEntry(t *testing.T) {
	node, err := FindEntry(testWorkflow())
	require.NoError(t, err)
	assert.Equal(t, "start", node.ID)
}

func TestFindEntry_Missing(t *testing.T) {
	wf := &models.Workflow{
		ID:    "wf-2",
		Nodes: []*models.Node{{ID: "only", Type: models.NodeTypeEnd}},
	}

	_, err := FindEntry(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryNode)
}

func TestFindByID(t *testing.T) {
	node, err := FindByID(testWorkflow(), "check")
	require.NoError(t, err)
	assert.Equal(t, models.NodeTypeIf, node.Type)

	_, err = FindByID(testWorkflow(), "ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestFindNext_DefaultEdge(t *testing.T) {
	next, ok := FindNext(testWorkflow(), "start", "")
	require.True(t, ok)
	assert.Equal(t, "check", next)
}

func TestFindNext_BranchLabel(t *testing.T) {
	next, ok := FindNext(testWorkflow(), "check", "true")
	require.True(t, ok)
	assert.Equal(t, "yes", next)

	next, ok = FindNext(testWorkflow(), "check", "false")
	require.True(t, ok)
	assert.Equal(t, "no", next)
}

func TestFindNext_NoMatchingBranch(t *testing.T) {
	_, ok := FindNext(testWorkflow(), "check", "maybe")
	assert.False(t, ok)
}

func TestFindNext_TerminalNodeHasNoEdge(t *testing.T) {
	_, ok := FindNext(testWorkflow(), "done", "")
	assert.False(t, ok)
}
