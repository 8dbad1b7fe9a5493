package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/store"
	"github.com/noah-isme/marksvault/pkg/export"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered report held in memory. Reports are never written next to the vault.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

var awardHeaders = []string{
	"Student ID", "Surname", "First Name", "Program", "Plan", "Calculation",
	"Raw Mark", "Final Mark", "Award", "Borderline", "Recommendation", "Review", "Override",
}

// ExportService renders award reports.
type ExportService struct {
	store  txViewer
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(st txViewer, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{store: st, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Awards renders the award report for students graduating in year, or every graduating
// student when year is empty.
func (s *ExportService) Awards(ctx context.Context, format, year string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	var graduation models.AcademicYear
	if year != "" {
		parsed, err := models.ParseAcademicYear(year)
		if err != nil {
			return nil, translate(err, "invalid academic year")
		}
		graduation = parsed
	}

	var students []models.StudentInfo
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		students, err = tx.Students.ListGraduating(ctx, graduation)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to load award data")
	}

	dataset := awardDataset(students)
	title := "Award report"
	if graduation != "" {
		title += " " + string(graduation)
	}

	var data []byte
	contentType := "text/csv"
	switch format {
	case FormatCSV:
		data, err = s.csv.Render(dataset)
	case FormatPDF:
		contentType = "application/pdf"
		data, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	yearPart := "all"
	if graduation != "" {
		yearPart = strings.ReplaceAll(string(graduation), "/", "-")
	}
	filename := fmt.Sprintf("awards_%s_%s.%s", yearPart, s.now().UTC().Format("20060102_150405"), format)
	s.logger.Info("award report rendered", zap.String("format", format), zap.Int("rows", len(students)))
	return &ExportFile{Filename: filename, ContentType: contentType, Data: data, Rows: len(students)}, nil
}

func awardDataset(students []models.StudentInfo) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"Student ID":     st.ID,
			"Surname":        st.LastName,
			"First Name":     st.FirstName,
			"Program":        deref(st.Program),
			"Plan":           deref(st.Plan),
			"Calculation":    deref(st.Calculation),
			"Raw Mark":       formatFloat(st.RawMark),
			"Final Mark":     formatInt(st.FinalMark),
			"Award":          deref(st.DegreeAward),
			"Borderline":     yesNo(st.Borderline),
			"Recommendation": deref(st.Recommendation),
			"Review":         yesNo(st.ReviewRequired),
			"Override":       deref(st.ExceptionData),
		})
	}
	return export.Dataset{Headers: awardHeaders, Rows: rows}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}
