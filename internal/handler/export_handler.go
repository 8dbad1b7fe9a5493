package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/marksvault/internal/service"
	"github.com/noah-isme/marksvault/pkg/response"
)

type awardExporter interface {
	Awards(ctx context.Context, format, year string) (*service.ExportFile, error)
}

// ExportHandler streams generated reports.
type ExportHandler struct {
	exports awardExporter
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports awardExporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Awards godoc
// @Summary Download the award report
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param year query string false "Graduation academic year, e.g. 2024/2025"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/awards [get]
func (h *ExportHandler) Awards(c *gin.Context) {
	file, err := h.exports.Awards(c.Request.Context(), c.Query("format"), c.Query("year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
