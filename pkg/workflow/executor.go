// Package workflow contains the execution engine: the loop that walks a
// workflow graph node by node, persisting state after every transition so a
// run survives process restarts and can be paused and resumed.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ccxxllhl2/ai-workflow/pkg/eventbus"
	"github.com/ccxxllhl2/ai-workflow/pkg/events"
	"github.com/ccxxllhl2/ai-workflow/pkg/graph"
	"github.com/ccxxllhl2/ai-workflow/pkg/llm"
	"github.com/ccxxllhl2/ai-workflow/pkg/log"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes"
	"github.com/ccxxllhl2/ai-workflow/pkg/otelhelper"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/registry"
	"github.com/ccxxllhl2/ai-workflow/pkg/variables"
)

// Engine drives workflow executions. It is stateless between calls; all
// execution state lives in persistence, which is what makes runs durable and
// resumable.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	llm         llm.Client
	bus         eventbus.EventBus
	tracer      trace.Tracer
	store       *variables.Store
	recorder    *historyRecorder
	logger      *slog.Logger
}

type EngineOption func(*Engine)

// WithEventBus publishes lifecycle events on the given bus.
func WithEventBus(bus eventbus.EventBus) EngineOption {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithTracer records execution and node spans on the given tracer.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func NewEngine(p persistence.Persistence, r *registry.Registry, client llm.Client, opts ...EngineOption) *Engine {
	store := variables.NewStore(p.VariableRepository())

	e := &Engine{
		persistence: p,
		registry:    r,
		llm:         client,
		store:       store,
		recorder:    newHistoryRecorder(p.HistoryRepository(), store),
		tracer:      noop.NewTracerProvider().Tracer("engine"),
		logger:      log.WithModule("engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Variables exposes the engine's variable store so callers can read run
// output after the fact.
func (e *Engine) Variables() *variables.Store {
	return e.store
}

// Run starts a new execution of the given workflow and drives it until it
// completes, pauses, fails or is cancelled. The returned execution reflects
// the final persisted state. Initial variables override the entry node's
// defaults.
func (e *Engine) Run(ctx context.Context, workflowID string, initial map[string]any) (*models.Execution, error) {
	exec, err := e.Start(ctx, workflowID, initial)
	if err != nil {
		return exec, err
	}

	err = e.Drive(ctx, exec)

	return exec, err
}

// Start creates an execution, seeds the caller's initial variables and marks
// it running at the entry node, without processing any node yet. Callers that
// want a fire-and-forget run call Start, hand the execution ID back and Drive
// in the background.
func (e *Engine) Start(ctx context.Context, workflowID string, initial map[string]any) (*models.Execution, error) {
	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	exec := &models.Execution{
		ID:         "exec-" + uuid.New().String(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusPending,
		StartedAt:  time.Now().UTC(),
	}

	err = e.persistence.ExecutionRepository().Save(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger := e.logger.With("workflow_id", workflowID, "execution_id", exec.ID)
	logger.Info("Starting execution")

	entry, err := graph.FindEntry(wf)
	if err != nil {
		_, ferr := e.finalize(ctx, exec, models.ExecutionStatusFailed, err.Error())
		if ferr != nil {
			logger.Error("Failed to persist failed execution", "error", ferr)
		}

		return exec, err
	}

	if len(initial) > 0 {
		err = e.store.SetAll(ctx, exec.ID, initial, entry.ID)
		if err != nil {
			return exec, fmt.Errorf("failed to store initial variables: %w", err)
		}
	}

	exec.Status = models.ExecutionStatusRunning
	exec.CurrentNodeID = entry.ID

	applied, err := e.saveUnlessFinished(ctx, exec)
	if err != nil {
		return exec, fmt.Errorf("failed to persist execution: %w", err)
	}

	if !applied {
		logger.Info("Execution finished before it started running", "status", exec.Status)

		return exec, nil
	}

	e.publish(ctx, exec.ID, events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, workflowID, exec.ID),
	})

	return exec, nil
}

// Drive runs the node loop for a started execution until it reaches a final
// or paused state.
func (e *Engine) Drive(ctx context.Context, exec *models.Execution) error {
	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, exec.WorkflowID)
	if err != nil {
		return err
	}

	logger := e.logger.With("workflow_id", exec.WorkflowID, "execution_id", exec.ID)

	return e.loop(ctx, wf, exec, logger)
}

// Resume continues a paused execution. Variables supplied by the caller are
// stored before the run continues, attributed to the node it paused at. When
// the execution is paused at a human intervention node, traversal advances
// past it without re-executing the node.
func (e *Engine) Resume(ctx context.Context, executionID string, supplied map[string]any) (*models.Execution, error) {
	exec, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if exec.Status != models.ExecutionStatusPaused {
		return exec, fmt.Errorf("%w: cannot resume execution in status %q", ErrInvalidState, exec.Status)
	}

	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, exec.WorkflowID)
	if err != nil {
		return exec, err
	}

	logger := e.logger.With("workflow_id", exec.WorkflowID, "execution_id", exec.ID)
	logger.Info("Resuming execution", "node_id", exec.CurrentNodeID)

	if len(supplied) > 0 {
		err = e.store.SetAll(ctx, exec.ID, supplied, exec.CurrentNodeID)
		if err != nil {
			return exec, fmt.Errorf("failed to store supplied variables: %w", err)
		}
	}

	node, err := graph.FindByID(wf, exec.CurrentNodeID)
	if err != nil {
		_, ferr := e.finalize(ctx, exec, models.ExecutionStatusFailed, err.Error())
		if ferr != nil {
			logger.Error("Failed to persist failed execution", "error", ferr)
		}

		return exec, err
	}

	e.publish(ctx, exec.ID, events.ExecutionResumed{
		BaseEvent: events.NewBaseEvent(events.ExecutionResumedEvent, exec.WorkflowID, exec.ID),
		NodeID:    node.ID,
	})

	if node.Type == models.NodeTypeHumanControl {
		next, ok := graph.FindNext(wf, node.ID, "")
		if !ok {
			_, err = e.finalize(ctx, exec, models.ExecutionStatusCompleted, "")
			if err != nil {
				return exec, err
			}

			e.publish(ctx, exec.ID, events.ExecutionCompleted{
				BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, exec.WorkflowID, exec.ID),
			})

			return exec, nil
		}

		exec.CurrentNodeID = next
	}

	exec.Status = models.ExecutionStatusRunning

	applied, err := e.saveUnlessFinished(ctx, exec)
	if err != nil {
		return exec, fmt.Errorf("failed to persist execution: %w", err)
	}

	if !applied {
		return exec, fmt.Errorf("%w: cannot resume execution in status %q", ErrInvalidState, exec.Status)
	}

	err = e.loop(ctx, wf, exec, logger)

	return exec, err
}

// Cancel stops an execution that has not finished yet. Pending, running and
// paused executions may all be cancelled; terminal statuses are immutable.
func (e *Engine) Cancel(ctx context.Context, executionID string) (*models.Execution, error) {
	exec, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if exec.Status.IsTerminal() {
		return exec, fmt.Errorf("%w: cannot cancel execution in status %q", ErrInvalidState, exec.Status)
	}

	previous := exec.Status

	applied, err := e.finalize(ctx, exec, models.ExecutionStatusCancelled, "")
	if err != nil {
		return exec, err
	}

	if !applied {
		return exec, fmt.Errorf("%w: cannot cancel execution in status %q", ErrInvalidState, exec.Status)
	}

	e.logger.Info("Execution cancelled", "execution_id", exec.ID, "previous_status", previous)
	e.publish(ctx, exec.ID, events.ExecutionCancelled{
		BaseEvent:      events.NewBaseEvent(events.ExecutionCancelledEvent, exec.WorkflowID, exec.ID),
		PreviousStatus: previous,
	})

	return exec, nil
}

// loop walks the graph from the execution's current node. Each iteration
// re-reads the persisted status first so a concurrent Cancel takes effect at
// the next node boundary.
func (e *Engine) loop(ctx context.Context, wf *models.Workflow, exec *models.Execution, logger *slog.Logger) error {
	for exec.CurrentNodeID != "" {
		latest, err := e.persistence.ExecutionRepository().GetByID(ctx, exec.ID)
		if err != nil {
			return fmt.Errorf("failed to reload execution: %w", err)
		}

		if latest.Status != models.ExecutionStatusRunning {
			logger.Info("Execution no longer running, stopping loop", "status", latest.Status)
			*exec = *latest

			return nil
		}

		node, err := graph.FindByID(wf, exec.CurrentNodeID)
		if err != nil {
			return e.fail(ctx, exec, exec.CurrentNodeID, err.Error(), err, logger)
		}

		done, err := e.processNode(ctx, wf, exec, node, logger)
		if err != nil || done {
			return err
		}
	}

	return e.complete(ctx, exec, logger)
}

// processNode executes one node and applies its outcome to the execution.
// It reports done=true when the execution reached a final or paused state.
func (e *Engine) processNode(ctx context.Context, wf *models.Workflow, exec *models.Execution, node *models.Node, logger *slog.Logger) (bool, error) {
	nodeCtx, span := e.startNodeSpan(ctx, exec, node)
	defer span.End()

	processor, err := e.registry.Processor(node.Type)
	if err != nil {
		return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
	}

	record, err := e.recorder.openStep(nodeCtx, exec.ID, node)
	if err != nil {
		return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
	}

	logger.Debug("Processing node", "node_id", node.ID, "node_type", node.Type)

	outcome, err := processor.Process(nodeCtx, nodes.ExecContext{
		ExecutionID: exec.ID,
		Variables:   e.store,
		LLM:         e.llm,
		Logger:      logger.With("node_id", node.ID),
	}, node)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))

		cerr := e.recorder.closeStep(nodeCtx, record, models.HistoryStatusFailed, models.ErrorOutcome(err.Error()))
		if cerr != nil {
			logger.Error("Failed to close history record", "error", cerr)
		}

		return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
	}

	switch outcome.Status {
	case models.OutcomeError:
		cerr := e.recorder.closeStep(nodeCtx, record, models.HistoryStatusFailed, outcome)
		if cerr != nil {
			logger.Error("Failed to close history record", "error", cerr)
		}

		logger.Warn("Node failed", "node_id", node.ID, "error", outcome.ErrorMessage)

		return true, e.fail(nodeCtx, exec, node.ID, outcome.ErrorMessage, nil, logger)
	case models.OutcomePaused:
		err = e.recorder.closeStep(nodeCtx, record, models.HistoryStatusPaused, outcome)
		if err != nil {
			return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
		}

		exec.Status = models.ExecutionStatusPaused

		applied, err := e.saveUnlessFinished(nodeCtx, exec)
		if err != nil {
			return true, fmt.Errorf("failed to persist paused execution: %w", err)
		}

		if !applied {
			logger.Info("Execution finished while node was running, discarding pause", "status", exec.Status)

			return true, nil
		}

		logger.Info("Execution paused", "node_id", node.ID)
		e.publish(nodeCtx, exec.ID, events.ExecutionPaused{
			BaseEvent: events.NewBaseEvent(events.ExecutionPausedEvent, exec.WorkflowID, exec.ID),
			NodeID:    node.ID,
		})

		return true, nil
	case models.OutcomeCompleted:
		err = e.recorder.closeStep(nodeCtx, record, models.HistoryStatusCompleted, outcome)
		if err != nil {
			return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
		}

		exec.CurrentNodeID = node.ID

		return true, e.complete(nodeCtx, exec, logger)
	case models.OutcomeSuccess:
		err = e.recorder.closeStep(nodeCtx, record, models.HistoryStatusCompleted, outcome)
		if err != nil {
			return true, e.fail(nodeCtx, exec, node.ID, err.Error(), err, logger)
		}

		next := outcome.NextNodeID
		if next == "" {
			next, _ = graph.FindNext(wf, node.ID, outcome.BranchLabel)
		}

		if next == "" {
			return true, e.complete(nodeCtx, exec, logger)
		}

		exec.CurrentNodeID = next

		applied, err := e.saveUnlessFinished(nodeCtx, exec)
		if err != nil {
			return true, fmt.Errorf("failed to persist execution: %w", err)
		}

		if !applied {
			logger.Info("Execution finished while node was running, stopping loop", "status", exec.Status)

			return true, nil
		}

		return false, nil
	default:
		return true, e.fail(nodeCtx, exec, node.ID, fmt.Sprintf("unknown outcome status %q", outcome.Status), nil, logger)
	}
}

// complete finalizes the execution as completed and publishes the event.
func (e *Engine) complete(ctx context.Context, exec *models.Execution, logger *slog.Logger) error {
	applied, err := e.finalize(ctx, exec, models.ExecutionStatusCompleted, "")
	if err != nil {
		return err
	}

	if !applied {
		logger.Info("Execution already finished, keeping persisted status", "status", exec.Status)

		return nil
	}

	logger.Info("Execution completed")
	e.publish(ctx, exec.ID, events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, exec.WorkflowID, exec.ID),
		Duration:  time.Since(exec.StartedAt),
	})

	return nil
}

// fail finalizes the execution as failed. cause is the infrastructure error
// to propagate, nil when the failure was a node-level outcome.
func (e *Engine) fail(ctx context.Context, exec *models.Execution, nodeID, message string, cause error, logger *slog.Logger) error {
	applied, err := e.finalize(ctx, exec, models.ExecutionStatusFailed, message)
	if err != nil {
		logger.Error("Failed to persist failed execution", "error", err)
	}

	if !applied && err == nil {
		logger.Info("Execution already finished, dropping node failure", "status", exec.Status, "node_id", nodeID)

		return cause
	}

	logger.Error("Execution failed", "node_id", nodeID, "error", message)
	e.publish(ctx, exec.ID, events.ExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.ExecutionFailedEvent, exec.WorkflowID, exec.ID),
		NodeID:    nodeID,
		Error:     message,
	})

	return cause
}

// finalize moves the execution into a terminal status and persists it. It
// reports applied=false when another writer finished the execution first; the
// persisted state wins and exec is updated to reflect it.
func (e *Engine) finalize(ctx context.Context, exec *models.Execution, status models.ExecutionStatus, errorMessage string) (bool, error) {
	now := time.Now().UTC()
	exec.Status = status
	exec.CompletedAt = &now
	exec.ErrorMessage = errorMessage

	applied, err := e.saveUnlessFinished(ctx, exec)
	if err != nil {
		return false, fmt.Errorf("failed to finalize execution: %w", err)
	}

	return applied, nil
}

// saveUnlessFinished persists the execution unless its persisted status is
// already terminal. Terminal statuses are immutable, so a Cancel issued while
// a node is in flight must not be overwritten by the step loop's own save.
// On refusal the persisted state is copied back into exec.
func (e *Engine) saveUnlessFinished(ctx context.Context, exec *models.Execution) (bool, error) {
	latest, err := e.persistence.ExecutionRepository().GetByID(ctx, exec.ID)
	if err != nil {
		return false, fmt.Errorf("failed to reload execution: %w", err)
	}

	if latest.Status.IsTerminal() {
		*exec = *latest

		return false, nil
	}

	err = e.persistence.ExecutionRepository().Save(ctx, exec)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, key, event)
	if err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) startNodeSpan(ctx context.Context, exec *models.Execution, node *models.Node) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, e.tracer, "node.process",
		attribute.String(otelhelper.WorkflowIDKey, exec.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, exec.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
}
