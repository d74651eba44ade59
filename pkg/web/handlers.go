// Package web provides HTTP handlers and REST API endpoints for pipelines and their components.
package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/registry"
	"github.com/dukex/sqlgems/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	pipelineService  *services.Pipeline
	componentService *services.Component
	compiler         *services.Compiler
	validator        *validator.Validate
	registry         *registry.Registry
}

func NewAPIHandlers(
	pipelineService *services.Pipeline,
	componentService *services.Component,
	compiler *services.Compiler,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		pipelineService:  pipelineService,
		componentService: componentService,
		compiler:         compiler,
		validator:        validator,
		registry:         registry,
	}
}

// Routes mounts every endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	g := router.Group("/gems")
	g.Get("/", h.GetGems)
	g.Post("/:name/compile", h.CompileDocument)

	p := router.Group("/pipelines")
	p.Get("/", h.GetPipelines)
	p.Post("/", h.CreatePipeline)
	p.Get("/:id", h.GetPipeline)
	p.Delete("/:id", h.DeletePipeline)
	p.Put("/:id/graph", h.UpdatePipelineGraph)

	c := p.Group("/:id/components")
	c.Put("/:nodeId", h.PutComponent)
	c.Get("/:nodeId", h.GetComponent)
	c.Post("/:nodeId/reconcile", h.ReconcileComponent)
	c.Get("/:nodeId/diagnostics", h.GetComponentDiagnostics)
	c.Get("/:nodeId/code", h.GetComponentCode)

	p.Post("/:id/reconcile", h.ReconcilePipeline)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetGems(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"gems": h.registry.List(),
	})
}

// CompileDocument reconciles, validates and renders a component without storing anything.
func (h *APIHandlers) CompileDocument(c fiber.Ctx) error {
	name := c.Params("name")

	gem, err := h.registry.Gem(name)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req CompileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	doc := req.Document(gem.Name())
	if doc.Component.Gem != gem.Name() {
		return badRequest(c, fmt.Sprintf("component gem '%s' does not match '%s'", doc.Component.Gem, gem.Name()))
	}

	if err := h.validator.Struct(doc.Component); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.compiler.Compile(c.Context(), doc)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	req, err := h.parseListPipelinesRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.pipelineService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipelines":     result.Pipelines,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListPipelinesRequest parses query parameters for listing pipelines.
func (h *APIHandlers) parseListPipelinesRequest(c fiber.Ctx) (*services.ListPipelinesRequest, error) {
	req := &services.ListPipelinesRequest{}

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

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	pipeline, err := h.pipelineService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.pipelineService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "SQLGems API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "SQLGems API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pipeline := &models.Pipeline{
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.Graph,
	}

	created, err := h.pipelineService.Create(c.Context(), pipeline)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdatePipelineGraph(c fiber.Ctx) error {
	var req UpdateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.pipelineService.UpdateGraph(c.Context(), c.Params("id"), req.Graph())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	err := h.pipelineService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReconcilePipeline(c fiber.Ctx) error {
	changed, err := h.componentService.ReconcilePipeline(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"changed": changed,
	})
}

// PutComponent stores the component of a node. An If-Match header must carry the current ETag.
func (h *APIHandlers) PutComponent(c fiber.Ctx) error {
	var req PutComponentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.componentService.Put(c.Context(), c.Params("id"), c.Params("nodeId"), services.PutComponentRequest{
		Gem:        req.Gem,
		Ports:      req.Ports,
		Parameters: req.Parameters,
		IfMatch:    ParseIfMatch(c.Get(fiber.HeaderIfMatch)),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	response := NewComponentResponse(saved)
	c.Set(fiber.HeaderETag, ETag(response.Fingerprint))

	return c.JSON(response)
}

func (h *APIHandlers) GetComponent(c fiber.Ctx) error {
	component, err := h.componentService.Get(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	response := NewComponentResponse(component)
	c.Set(fiber.HeaderETag, ETag(response.Fingerprint))

	return c.JSON(response)
}

func (h *APIHandlers) ReconcileComponent(c fiber.Ctx) error {
	component, changed, err := h.componentService.Reconcile(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	response := ReconcileResponse{
		ComponentResponse: NewComponentResponse(component),
		Changed:           changed,
	}
	c.Set(fiber.HeaderETag, ETag(response.Fingerprint))

	return c.JSON(response)
}

func (h *APIHandlers) GetComponentDiagnostics(c fiber.Ctx) error {
	diagnostics, err := h.componentService.Diagnostics(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DiagnosticsResponse{Diagnostics: diagnostics})
}

func (h *APIHandlers) GetComponentCode(c fiber.Ctx) error {
	code, err := h.componentService.Compile(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CodeResponse{Code: code})
}
