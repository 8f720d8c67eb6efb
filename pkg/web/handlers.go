package web

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/ccxxllhl2/ai-workflow/pkg/log"
	"github.com/ccxxllhl2/ai-workflow/pkg/models"
	"github.com/ccxxllhl2/ai-workflow/pkg/nodes/terminal"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/workflow"
)

const defaultListLimit = 50

type APIHandlers struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(p persistence.Persistence, engine *workflow.Engine, v *validator.Validate) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		engine:      engine,
		validator:   v,
		logger:      log.WithModule("api"),
	}
}

// RegisterRoutes mounts all workflow and execution routes on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/workflows", h.ListWorkflows)
	app.Post("/workflows", h.CreateWorkflow)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Patch("/workflows/:id", h.UpdateWorkflow)
	app.Delete("/workflows/:id", h.DeleteWorkflow)
	app.Post("/workflows/:id/execute", h.ExecuteWorkflow)
	app.Get("/workflows/:id/executions", h.ListWorkflowExecutions)

	app.Get("/executions", h.ListExecutions)
	app.Get("/executions/:id", h.GetExecution)
	app.Post("/executions/:id/continue", h.ContinueExecution)
	app.Post("/executions/:id/stop", h.StopExecution)
	app.Get("/executions/:id/variables", h.GetExecutionVariables)
	app.Get("/executions/:id/history", h.GetExecutionHistory)
	app.Get("/executions/:id/final-output", h.GetFinalOutput)
	app.Delete("/executions/:id", h.DeleteExecution)
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().GetAll(c.Context())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Metadata:    req.Metadata,
		Owner:       req.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.persistence.WorkflowRepository().Save(c.Context(), wf); err != nil {
		return handleDomainError(c, err)
	}

	h.logger.Info("Workflow created", "workflow_id", wf.ID, "name", wf.Name)

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.persistence.WorkflowRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	wf, err := h.persistence.WorkflowRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	var req UpdateWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.Nodes != nil {
		wf.Nodes = req.Nodes
	}

	if req.Edges != nil {
		wf.Edges = req.Edges
	}

	if req.Metadata != nil {
		wf.Metadata = req.Metadata
	}

	wf.UpdatedAt = time.Now().UTC()

	if err := h.persistence.WorkflowRepository().Save(c.Context(), wf); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.persistence.WorkflowRepository().Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow starts a run. With ?wait=true the request blocks until the
// run finishes or pauses; otherwise the execution is returned immediately and
// the loop continues in the background.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("id")

	var req ExecuteWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON body: "+err.Error())
		}
	}

	wait, _ := strconv.ParseBool(c.Query("wait", "false"))

	if wait {
		exec, err := h.engine.Run(c.Context(), workflowID, req.Variables)
		if err != nil && exec == nil {
			return handleDomainError(c, err)
		}

		return c.JSON(toExecutionResponse(exec))
	}

	exec, err := h.engine.Start(c.Context(), workflowID, req.Variables)
	if err != nil {
		if exec != nil {
			return c.Status(fiber.StatusAccepted).JSON(toExecutionResponse(exec))
		}

		return handleDomainError(c, err)
	}

	go func() {
		// Detached from the request: the run must outlive the HTTP exchange.
		err := h.engine.Drive(context.Background(), exec)
		if err != nil {
			h.logger.Error("Background execution failed", "execution_id", exec.ID, "error", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(toExecutionResponse(exec))
}

func (h *APIHandlers) ListWorkflowExecutions(c fiber.Ctx) error {
	executions, err := h.persistence.ExecutionRepository().ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(h.toExecutionResponses(executions))
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	if workflowID := c.Query("workflow_id"); workflowID != "" {
		executions, err := h.persistence.ExecutionRepository().ListByWorkflow(c.Context(), workflowID)
		if err != nil {
			return handleDomainError(c, err)
		}

		return c.JSON(h.toExecutionResponses(executions))
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 0 {
		return badRequest(c, "invalid limit")
	}

	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		return badRequest(c, "invalid offset")
	}

	executions, err := h.persistence.ExecutionRepository().List(c.Context(), limit, offset)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(h.toExecutionResponses(executions))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	exec, err := h.persistence.ExecutionRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(toExecutionResponse(exec))
}

// ContinueExecution resumes a paused execution, optionally storing the
// variables supplied by the operator first.
func (h *APIHandlers) ContinueExecution(c fiber.Ctx) error {
	var req ContinueExecutionRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON body: "+err.Error())
		}
	}

	exec, err := h.engine.Resume(c.Context(), c.Params("id"), req.Variables)
	if err != nil {
		if exec == nil || errors.Is(err, workflow.ErrInvalidState) {
			return handleDomainError(c, err)
		}
		// The run failed mid-flight; the persisted execution reflects it.
	}

	return c.JSON(toExecutionResponse(exec))
}

func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	exec, err := h.engine.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(toExecutionResponse(exec))
}

func (h *APIHandlers) GetExecutionVariables(c fiber.Ctx) error {
	executionID := c.Params("id")

	_, err := h.persistence.ExecutionRepository().GetByID(c.Context(), executionID)
	if err != nil {
		return handleDomainError(c, err)
	}

	stored, err := h.persistence.VariableRepository().ListByExecution(c.Context(), executionID)
	if err != nil {
		return handleDomainError(c, err)
	}

	responses := make([]VariableResponse, 0, len(stored))

	for _, v := range stored {
		value, _, err := h.engine.Variables().Get(c.Context(), executionID, v.Name)
		if err != nil {
			return handleDomainError(c, err)
		}

		responses = append(responses, VariableResponse{
			Name:          v.Name,
			Value:         value,
			Kind:          v.Kind,
			CreatedByNode: v.CreatedByNode,
		})
	}

	return c.JSON(responses)
}

func (h *APIHandlers) GetExecutionHistory(c fiber.Ctx) error {
	executionID := c.Params("id")

	_, err := h.persistence.ExecutionRepository().GetByID(c.Context(), executionID)
	if err != nil {
		return handleDomainError(c, err)
	}

	history, err := h.persistence.HistoryRepository().ListByExecution(c.Context(), executionID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(history)
}

// GetFinalOutput returns the output materialized by the end node. Only
// completed executions have one.
func (h *APIHandlers) GetFinalOutput(c fiber.Ctx) error {
	executionID := c.Params("id")

	exec, err := h.persistence.ExecutionRepository().GetByID(c.Context(), executionID)
	if err != nil {
		return handleDomainError(c, err)
	}

	if exec.Status != models.ExecutionStatusCompleted {
		return badRequest(c, "execution has not completed")
	}

	value, found, err := h.engine.Variables().Get(c.Context(), executionID, terminal.FinalOutputVariable)
	if err != nil {
		return handleDomainError(c, err)
	}

	output, _ := value.(string)

	return c.JSON(FinalOutputResponse{
		ExecutionID: executionID,
		FinalOutput: output,
		HasOutput:   found,
	})
}

func (h *APIHandlers) DeleteExecution(c fiber.Ctx) error {
	err := h.persistence.ExecutionRepository().Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) toExecutionResponses(executions []*models.Execution) []ExecutionResponse {
	responses := make([]ExecutionResponse, 0, len(executions))
	for _, exec := range executions {
		responses = append(responses, toExecutionResponse(exec))
	}

	return responses
}
