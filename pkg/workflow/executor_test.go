package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxxllhl2/ai-workflow/pkg/graph"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence/file"
	"github.com/ccxxllhl2/ai-workflow/pkg/registry"
)

type fakeLLM struct {
	response string
}

func (f *fakeLLM) Generate(_ context.Context, _, _ string) (string, error) {
	return f.response, nil
}

func newTestEngine(t *testing.T) (*Engine, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	engine := NewEngine(p, registry.NewRegistry(), &fakeLLM{response: "generated text"})

	return engine, p
}

func saveWorkflow(t *testing.T, p persistence.Persistence, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, p.WorkflowRepository().Save(context.Background(), wf))
}

func linearWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-linear",
		Name: "linear",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry, Config: map[string]any{
				"initialVariables": map[string]any{"topic": "bees"},
			}},
			{ID: "write", Type: models.NodeTypeAgent, Config: map[string]any{
				"prompt":         "Write about {{topic}}",
				"outputVariable": "draft",
			}},
			{ID: "finish", Type: models.NodeTypeEnd, Config: map[string]any{
				"finalOutput": "{{draft}}",
			}},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "write"},
			{Source: "write", Target: "finish"},
		},
	}
}

func TestEngine_RunLinearWorkflow(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	exec, err := engine.Run(ctx, "wf-linear", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.CompletedAt)

	value, found, err := engine.Variables().Get(ctx, exec.ID, "final_output")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "generated text", value)

	history, err := p.HistoryRepository().ListByExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	for _, record := range history {
		assert.Equal(t, models.HistoryStatusCompleted, record.Status)
		require.NotNil(t, record.CompletedAt)
	}

	assert.Equal(t, "start", history[0].NodeID)
	assert.Equal(t, "write", history[1].NodeID)
	assert.Equal(t, "finish", history[2].NodeID)
}

func TestEngine_InitialVariablesOverrideEntryDefaults(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	exec, err := engine.Run(ctx, "wf-linear", map[string]any{"topic": "ants"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)

	value, _, err := engine.Variables().Get(ctx, exec.ID, "topic")
	require.NoError(t, err)
	assert.Equal(t, "ants", value)
}

func TestEngine_ConditionalBranching(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, &models.Workflow{
		ID: "wf-branch",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry},
			{ID: "check", Type: models.NodeTypeIf, Config: map[string]any{
				"conditions": []any{
					map[string]any{"variable": "score", "operator": ">=", "value": 60, "output_branch": "pass"},
				},
			}},
			{ID: "passed", Type: models.NodeTypeEnd, Config: map[string]any{"finalOutput": "passed"}},
			{ID: "failed", Type: models.NodeTypeEnd, Config: map[string]any{"finalOutput": "failed"}},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "check"},
			{Source: "check", Target: "passed", BranchLabel: "pass"},
			{Source: "check", Target: "failed", BranchLabel: "false"},
		},
	})

	exec, err := engine.Run(ctx, "wf-branch", map[string]any{"score": 75})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)

	value, _, err := engine.Variables().Get(ctx, exec.ID, "final_output")
	require.NoError(t, err)
	assert.Equal(t, "passed", value)

	exec, err = engine.Run(ctx, "wf-branch", map[string]any{"score": 30})
	require.NoError(t, err)

	value, _, err = engine.Variables().Get(ctx, exec.ID, "final_output")
	require.NoError(t, err)
	assert.Equal(t, "failed", value)
}

func pausingWorkflow() *models.Workflow {
	return &models.Workflow{
		ID: "wf-pause",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry},
			{ID: "review", Type: models.NodeTypeHumanControl, Config: map[string]any{
				"message": "approve the draft",
			}},
			{ID: "finish", Type: models.NodeTypeEnd, Config: map[string]any{
				"finalOutput": "approved={{approved}}",
			}},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "review"},
			{Source: "review", Target: "finish"},
		},
	}
}

func TestEngine_PauseAndResume(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, pausingWorkflow())

	exec, err := engine.Run(ctx, "wf-pause", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, exec.Status)
	assert.Equal(t, "review", exec.CurrentNodeID)

	history, err := p.HistoryRepository().ListByExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryStatusPaused, history[1].Status)

	resumed, err := engine.Resume(ctx, exec.ID, map[string]any{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	value, _, err := engine.Variables().Get(ctx, exec.ID, "final_output")
	require.NoError(t, err)
	assert.Equal(t, "approved=true", value)

	// The intervention node is not re-executed on resume.
	history, err = p.HistoryRepository().ListByExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.HistoryStatusPaused, history[1].Status)
	assert.Equal(t, "finish", history[2].NodeID)
}

func TestEngine_ResumeVariablesAttributedToPausedNode(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, pausingWorkflow())

	exec, err := engine.Run(ctx, "wf-pause", nil)
	require.NoError(t, err)

	_, err = engine.Resume(ctx, exec.ID, map[string]any{"approved": true})
	require.NoError(t, err)

	variable, err := p.VariableRepository().GetByName(ctx, exec.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, "review", variable.CreatedByNode)
}

func TestEngine_ResumeRequiresPausedStatus(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	exec, err := engine.Run(ctx, "wf-linear", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, exec.Status)

	_, err = engine.Resume(ctx, exec.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEngine_CancelPausedExecution(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, pausingWorkflow())

	exec, err := engine.Run(ctx, "wf-pause", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, exec.Status)

	cancelled, err := engine.Cancel(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)

	// Terminal statuses are immutable.
	_, err = engine.Cancel(ctx, exec.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = engine.Resume(ctx, exec.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

type blockingLLM struct {
	entered  chan struct{}
	release  chan struct{}
	response string
}

func (b *blockingLLM) Generate(_ context.Context, _, _ string) (string, error) {
	close(b.entered)
	<-b.release

	return b.response, nil
}

func TestEngine_CancelDuringRunningStep(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	llm := &blockingLLM{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		response: "generated text",
	}
	engine := NewEngine(p, registry.NewRegistry(), llm)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	exec, err := engine.Start(ctx, "wf-linear", nil)
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		done <- engine.Drive(ctx, exec)
	}()

	// Wait until the agent node is in flight, then cancel.
	<-llm.entered

	cancelled, err := engine.Cancel(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)

	close(llm.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the run to stop")
	}

	// The cancel survives the in-flight step; the loop does not advance.
	final, err := p.ExecutionRepository().GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, final.Status)
	assert.Equal(t, "write", final.CurrentNodeID)

	_, err = engine.Cancel(ctx, exec.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHistoryRecorder_OpensStepAsStarted(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	record, err := engine.recorder.openStep(ctx, "exec-hist", &models.Node{
		ID:   "write",
		Type: models.NodeTypeAgent,
		Name: "writer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.HistoryStatusStarted, record.Status)

	stored, err := p.HistoryRepository().ListByExecution(ctx, "exec-hist")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.HistoryStatusStarted, stored[0].Status)
	assert.Nil(t, stored[0].CompletedAt)
}

func TestEngine_MissingEntryNodeFailsRun(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, &models.Workflow{
		ID:    "wf-no-entry",
		Nodes: []*models.Node{{ID: "finish", Type: models.NodeTypeEnd}},
	})

	exec, err := engine.Run(ctx, "wf-no-entry", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNoEntryNode)
	require.NotNil(t, exec)
	assert.Equal(t, models.ExecutionStatusFailed, exec.Status)
	assert.NotEmpty(t, exec.ErrorMessage)
}

func TestEngine_UnknownWorkflow(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Run(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestEngine_NodeErrorOutcomeFailsExecution(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, &models.Workflow{
		ID: "wf-bad-agent",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry},
			{ID: "broken", Type: models.NodeTypeAgent, Config: map[string]any{
				"outputVariable": "x",
			}},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "broken"},
		},
	})

	exec, err := engine.Run(ctx, "wf-bad-agent", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "prompt")

	history, err := p.HistoryRepository().ListByExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryStatusFailed, history[1].Status)
}

func TestEngine_SuccessWithoutOutgoingEdgeCompletes(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, &models.Workflow{
		ID:    "wf-dangling",
		Nodes: []*models.Node{{ID: "start", Type: models.NodeTypeEntry}},
	})

	exec, err := engine.Run(ctx, "wf-dangling", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)
}

func TestEngine_VariableSnapshotCapturedPerStep(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	exec, err := engine.Run(ctx, "wf-linear", nil)
	require.NoError(t, err)

	history, err := p.HistoryRepository().ListByExecution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// The agent step saw the entry's seed; the final step saw the draft too.
	assert.Equal(t, "bees", history[1].VariablesSnapshot["topic"])
	assert.Equal(t, "generated text", history[2].VariablesSnapshot["draft"])
}

func TestEngine_ExecutionTimestamps(t *testing.T) {
	engine, p := newTestEngine(t)
	ctx := context.Background()

	saveWorkflow(t, p, linearWorkflow())

	before := time.Now().UTC()

	exec, err := engine.Run(ctx, "wf-linear", nil)
	require.NoError(t, err)
	require.NotNil(t, exec.CompletedAt)
	assert.False(t, exec.StartedAt.Before(before.Add(-time.Second)))
	assert.False(t, exec.CompletedAt.Before(exec.StartedAt))
}
