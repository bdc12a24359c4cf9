package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/flowgate/flowgate/pkg/executor"
	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/services"
)

// defaultAPIUser is recorded on executions queued directly through the API
// when the caller does not identify itself.
const defaultAPIUser = "api_user"

type APIHandlers struct {
	executionService *services.Execution
	instanceService  *services.Instance
	workflowService  *services.Workflow
	dashboardService *services.Dashboard
	executor         *executor.Executor
	validator        *validator.Validate
}

func NewAPIHandlers(
	executionService *services.Execution,
	instanceService *services.Instance,
	workflowService *services.Workflow,
	dashboardService *services.Dashboard,
	executor *executor.Executor,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		executionService: executionService,
		instanceService:  instanceService,
		workflowService:  workflowService,
		dashboardService: dashboardService,
		executor:         executor,
		validator:        validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.executionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowgate API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowgate API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Instances

func (h *APIHandlers) CreateInstance(c fiber.Ctx) error {
	var req CreateInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.instanceService.CreateInstance(c.Context(), services.CreateInstanceRequest{
		Name:   req.Name,
		URL:    req.URL,
		APIKey: req.APIKey,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	instances, err := h.instanceService.ListInstances(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"instances": instances})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instance, err := h.instanceService.GetInstance(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) DeactivateInstance(c fiber.Ctx) error {
	if err := h.instanceService.DeactivateInstance(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Workflows

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.ListWorkflows(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	detail, err := h.workflowService.GetWorkflowDetail(c.Context(), c.Params("id"), c.Params("workflowId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

// Executions

func (h *APIHandlers) QueueExecution(c fiber.Ctx) error {
	var req QueueExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.UserID == "" {
		req.UserID = defaultAPIUser
	}

	runID, err := h.executor.Queue(c.Context(), req.WorkflowID, req.UserID, req.InputData, req.InstanceID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(QueueExecutionResponse{
		RunID:  runID,
		Status: string(models.ExecutionStatusPending),
	})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req, err := h.parseListExecutionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	records, err := h.executionService.ListExecutions(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": records,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListExecutionsRequest parses and validates query parameters for listing executions.
func (h *APIHandlers) parseListExecutionsRequest(c fiber.Ctx) (*services.ListExecutionsRequest, error) {
	req := &services.ListExecutionsRequest{
		WorkflowID: c.Query("workflow_id"),
		InstanceID: c.Query("instance_id"),
		Status:     c.Query("status"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if afterStr := c.Query("created_after"); afterStr != "" {
		after, err := time.Parse(time.RFC3339, afterStr)
		if err != nil {
			return nil, err
		}

		req.CreatedAfter = &after
	}

	if beforeStr := c.Query("created_before"); beforeStr != "" {
		before, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			return nil, err
		}

		req.CreatedBefore = &before
	}

	return req, nil
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executionService.GetExecution(c.Context(), c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

// Dashboards

func (h *APIHandlers) CreateDashboard(c fiber.Ctx) error {
	var req CreateDashboardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	fields := make([]models.DashboardField, 0, len(req.Fields))
	for _, field := range req.Fields {
		fields = append(fields, models.DashboardField{
			Name:         field.Name,
			Label:        field.Label,
			Type:         field.Type,
			Required:     field.Required,
			DefaultValue: field.DefaultValue,
			Description:  field.Description,
			Options:      field.Options,
		})
	}

	dashboard := &models.Dashboard{
		Name:        req.Name,
		Description: req.Description,
		WorkflowID:  req.WorkflowID,
		InstanceID:  req.InstanceID,
		ThemeColor:  req.ThemeColor,
		Fields:      fields,
	}

	created, err := h.dashboardService.CreateDashboard(c.Context(), dashboard)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDashboards(c fiber.Ctx) error {
	dashboards, err := h.dashboardService.ListDashboards(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"dashboards": dashboards})
}

func (h *APIHandlers) GetDashboard(c fiber.Ctx) error {
	dashboard, err := h.dashboardService.GetDashboard(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(dashboard)
}

func (h *APIHandlers) ExecuteDashboard(c fiber.Ctx) error {
	var req ExecuteDashboardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	runID, err := h.dashboardService.ExecuteDashboard(c.Context(), c.Params("id"), req.InputData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(QueueExecutionResponse{
		RunID:  runID,
		Status: string(models.ExecutionStatusPending),
	})
}

// Callback

// HandleCallback always answers 200 so remote systems stop retrying; the
// body says whether the result was accepted.
func (h *APIHandlers) HandleCallback(c fiber.Ctx) error {
	var req CallbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	success := h.executor.HandleCallback(c.Context(), c.Params("runId"), req.OutputData, req.SecretKey)

	return c.JSON(CallbackResponse{Success: success})
}
