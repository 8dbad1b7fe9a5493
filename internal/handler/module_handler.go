package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/service"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
	"github.com/noah-isme/marksvault/pkg/response"
)

type moduleService interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, error)
	Create(ctx context.Context, req service.ModuleRequest) (*models.Module, error)
	Update(ctx context.Context, code string, req service.ModuleRequest) (*service.ModuleUpdate, error)
}

// ModuleHandler exposes the module catalogue.
type ModuleHandler struct {
	modules moduleService
}

// NewModuleHandler constructs ModuleHandler.
func NewModuleHandler(modules moduleService) *ModuleHandler {
	return &ModuleHandler{modules: modules}
}

// List godoc
// @Summary List modules
// @Tags Modules
// @Produce json
// @Param term query string false "AUTUMN or SPRING"
// @Param search query string false "Search by code or name"
// @Success 200 {object} response.Envelope
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	filter := models.ModuleFilter{Search: strings.TrimSpace(c.Query("search"))}
	if term := c.Query("term"); term != "" {
		filter.Term = models.ParseModuleTerm(term)
	}
	modules, err := h.modules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, modules)
}

// Create godoc
// @Summary Register a module
// @Tags Modules
// @Accept json
// @Produce json
// @Param payload body service.ModuleRequest true "Module"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	var req service.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	module, err := h.modules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// Update godoc
// @Summary Update a module's credit, term or name
// @Description A credit or term change recomputes every stored result that took the module.
// @Tags Modules
// @Accept json
// @Produce json
// @Param code path string true "Module code"
// @Param payload body service.ModuleRequest true "Module"
// @Success 200 {object} response.Envelope
// @Router /modules/{code} [put]
func (h *ModuleHandler) Update(c *gin.Context) {
	var req service.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	update, err := h.modules.Update(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, update)
}
