package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/service"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
	"github.com/noah-isme/marksvault/pkg/response"
)

type importer interface {
	Insert(ctx context.Context, req service.InsertRequest) (*models.IngestReport, error)
}

// ImportOptions bounds uploaded files.
type ImportOptions struct {
	MaxFileBytes int64
	UploadDir    string
}

// importPathRequest imports a file the presentation layer already has on local disk.
type importPathRequest struct {
	DataType     string `json:"data_type"`
	AcademicYear string `json:"academic_year"`
	Path         string `json:"path"`
}

// ImportHandler exposes insert_data.
type ImportHandler struct {
	importer importer
	opts     ImportOptions
	logger   *zap.Logger
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imp importer, opts ImportOptions, logger *zap.Logger) *ImportHandler {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 20 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{importer: imp, opts: opts, logger: logger}
}

// Create godoc
// @Summary Import a results, resit, award or module spreadsheet
// @Description Accepts either a multipart upload (fields data_type, academic_year, file) or a JSON body naming a local path.
// @Tags Imports
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param data_type formData string true "result, resit-may, resit-aug, award or modules"
// @Param academic_year formData string true "Academic year, e.g. 2024/2025"
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Create(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		h.importPath(c)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxFileBytes+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds upload limit"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if header.Size > h.opts.MaxFileBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds upload limit"))
		return
	}

	path, cleanup, err := h.spool(header)
	if err != nil {
		h.logger.Error("spool upload failed", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to receive upload"))
		return
	}
	defer cleanup()

	h.run(c, service.InsertRequest{
		DataType:     c.PostForm("data_type"),
		AcademicYear: c.PostForm("academic_year"),
		Path:         path,
	})
}

func (h *ImportHandler) importPath(c *gin.Context) {
	var req importPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	h.run(c, service.InsertRequest{DataType: req.DataType, AcademicYear: req.AcademicYear, Path: req.Path})
}

func (h *ImportHandler) run(c *gin.Context, req service.InsertRequest) {
	report, err := h.importer.Insert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// spool copies the upload to a private temp file keeping its extension, which selects the reader.
func (h *ImportHandler) spool(header *multipart.FileHeader) (string, func(), error) {
	src, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(h.opts.UploadDir, "marksvault-upload-*"+ext)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(dst.Name()) }
	if _, err := io.Copy(dst, io.LimitReader(src, h.opts.MaxFileBytes)); err != nil {
		_ = dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return dst.Name(), cleanup, nil
}
