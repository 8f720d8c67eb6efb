//go:build integration
// +build integration

package postgresql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = postgresContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

func setupTestDB(t *testing.T) *Persistence {
	t.Helper()

	ctx := context.Background()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error
		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("aiworkflow_test"),
			postgres.WithUsername("aiworkflow"),
			postgres.WithPassword("aiworkflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	p, err := NewPersistence(databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflows", "executions", "variables", "execution_history"} {
		_, err = p.db.ExecContext(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err)
	}

	return p
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	wf := &models.Workflow{
		ID:          "wf-1",
		Name:        "demo",
		Description: "demo workflow",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeEntry, Config: map[string]any{"initialVariables": map[string]any{"a": "b"}}},
			{ID: "finish", Type: models.NodeTypeEnd},
		},
		Edges:     []*models.Edge{{Source: "start", Target: "finish"}},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, p.WorkflowRepository().Save(ctx, wf))

	loaded, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Name)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, models.NodeTypeEntry, loaded.Nodes[0].Type)
	require.Len(t, loaded.Edges, 1)

	// Upsert replaces in place.
	wf.Name = "renamed"
	require.NoError(t, p.WorkflowRepository().Save(ctx, wf))

	loaded, err = p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)

	require.NoError(t, p.WorkflowRepository().Delete(ctx, "wf-1"))

	_, err = p.WorkflowRepository().GetByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionRepository_RoundTrip(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	exec := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, p.ExecutionRepository().Save(ctx, exec))

	now := time.Now().UTC().Truncate(time.Millisecond)
	exec.Status = models.ExecutionStatusCompleted
	exec.CompletedAt = &now
	require.NoError(t, p.ExecutionRepository().Save(ctx, exec))

	loaded, err := p.ExecutionRepository().GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)

	listed, err := p.ExecutionRepository().ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = p.ExecutionRepository().GetByID(ctx, "ghost")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestVariableRepository_RoundTrip(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, p.VariableRepository().Upsert(ctx, &models.Variable{
		ExecutionID: "exec-1", Name: "x", Value: "1", Kind: models.VariableKindNumber, CreatedByNode: "n1",
	}))
	require.NoError(t, p.VariableRepository().Upsert(ctx, &models.Variable{
		ExecutionID: "exec-1", Name: "x", Value: "2", Kind: models.VariableKindNumber, CreatedByNode: "n2",
	}))

	variable, err := p.VariableRepository().GetByName(ctx, "exec-1", "x")
	require.NoError(t, err)
	assert.Equal(t, "2", variable.Value)
	assert.Equal(t, "n2", variable.CreatedByNode)

	listed, err := p.VariableRepository().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestHistoryRepository_RoundTrip(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	record := &models.HistoryRecord{
		ID:                "h-1",
		ExecutionID:       "exec-1",
		NodeID:            "start",
		NodeType:          models.NodeTypeEntry,
		Status:            models.HistoryStatusStarted,
		StartedAt:         time.Now().UTC().Truncate(time.Millisecond),
		VariablesSnapshot: map[string]any{"a": "b"},
	}
	require.NoError(t, p.HistoryRepository().Append(ctx, record))

	now := time.Now().UTC().Truncate(time.Millisecond)
	record.Status = models.HistoryStatusCompleted
	record.CompletedAt = &now
	record.Duration = now.Sub(record.StartedAt).Seconds()
	require.NoError(t, p.HistoryRepository().Update(ctx, record))

	listed, err := p.HistoryRepository().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.HistoryStatusCompleted, listed[0].Status)
	assert.Equal(t, "b", listed[0].VariablesSnapshot["a"])

	err = p.HistoryRepository().Update(ctx, &models.HistoryRecord{ID: "ghost", ExecutionID: "exec-1"})
	assert.ErrorIs(t, err, persistence.ErrHistoryRecordNotFound)
}
