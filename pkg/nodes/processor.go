// Package nodes defines the contract every node processor implements and the
// per-execution context handed to it.
package nodes

import (
	"context"
	"log/slog"

	"github.com/ccxxllhl2/ai-workflow/pkg/llm"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/variables"
)

// ExecContext carries the execution-scoped collaborators a processor needs.
type ExecContext struct {
	ExecutionID string
	Variables   *variables.Store
	LLM         llm.Client
	Logger      *slog.Logger
}

// Processor executes one node of a workflow. Process returns a non-nil
// outcome describing what happened; a non-nil error is reserved for
// infrastructure failures (persistence, I/O) that must abort the execution
// rather than being recorded as a node-level failure.
type Processor interface {
	Type() models.NodeType
	Process(ctx context.Context, ec ExecContext, node *models.Node) (*models.Outcome, error)
}
