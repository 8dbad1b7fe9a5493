package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/service"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
	"github.com/noah-isme/marksvault/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentInfo, *models.Pagination, error)
	Get(ctx context.Context, id string) (*service.StudentDetail, error)
	Marks(ctx context.Context, id string) ([]models.Mark, error)
	Results(ctx context.Context, id string) ([]models.Result, error)
	Override(ctx context.Context, id string, req service.OverrideRequest) (*models.Override, error)
	Reclassify(ctx context.Context, id string) (*models.StudentInfo, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or student id"
// @Param calcModel query string false "Filter by calculation model"
// @Param borderline query bool false "Filter by borderline flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "id, last_name, final_mark or updated_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.CalcModel = strings.TrimSpace(c.Query("calcModel"))
	if raw := c.Query("borderline"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "borderline must be true or false"))
			return
		}
		filter.Borderline = &v
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail with override history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Marks godoc
// @Summary List a student's marks ordered by academic year and module
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/marks [get]
func (h *StudentHandler) Marks(c *gin.Context) {
	marks, err := h.students.Marks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, marks)
}

// Results godoc
// @Summary List a student's yearly results
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [get]
func (h *StudentHandler) Results(c *gin.Context) {
	results, err := h.students.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results)
}

// Override godoc
// @Summary Record a manual override
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.OverrideRequest true "Override"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/overrides [post]
func (h *StudentHandler) Override(c *gin.Context) {
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	override, err := h.students.Override(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, override)
}

// Reclassify godoc
// @Summary Rederive the classification from stored results
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/reclassify [post]
func (h *StudentHandler) Reclassify(c *gin.Context) {
	student, err := h.students.Reclassify(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}
