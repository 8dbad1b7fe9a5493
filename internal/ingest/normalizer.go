// Package ingest turns uploaded flat sheets into typed raw records with row diagnostics.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
)

// ErrMissingColumn is returned when a sheet lacks a column its data type requires.
var ErrMissingColumn = errors.New("required column missing")

// Batch is the typed content of one upload.
type Batch struct {
	DataType    models.DataType
	Year        models.AcademicYear
	Marks       []models.RawMarkRecord
	Students    []models.RawStudentRecord
	Modules     []models.RawModuleRecord
	Diagnostics []models.RowDiagnostic
}

// Rows returns the number of rows that produced a record.
func (b *Batch) Rows() int {
	return len(b.Marks) + len(b.Students) + len(b.Modules)
}

type field string

const (
	fieldStudentID    field = "student_id"
	fieldModuleCode   field = "module_code"
	fieldMark         field = "mark"
	fieldRetake1      field = "retake1"
	fieldRetake2      field = "retake2"
	fieldYearOfStudy  field = "year_of_study"
	fieldAcademicYear field = "academic_year"
	fieldFirstName    field = "first_name"
	fieldLastName     field = "last_name"
	fieldCareerNo     field = "career_no"
	fieldProgram      field = "program"
	fieldProgramDesc  field = "program_desc"
	fieldPlan         field = "plan"
	fieldPlanDesc     field = "plan_desc"
	fieldIntake       field = "intake"
	fieldQAA          field = "qaa"
	fieldCalcModel    field = "calc_model"
	fieldIntakeYear   field = "intake_year"
	fieldCredit       field = "credit"
	fieldName         field = "name"
	fieldTerm         field = "term"
)

// aliases maps squashed header spellings onto fields.
var aliases = map[string]field{
	"id": fieldStudentID, "studentid": fieldStudentID, "student": fieldStudentID, "studentno": fieldStudentID,
	"module": fieldModuleCode, "modulecode": fieldModuleCode, "course": fieldModuleCode, "coursecode": fieldModuleCode,
	"mark": fieldMark, "marks": fieldMark, "firstattempt": fieldMark,
	"retake1": fieldRetake1, "resit1": fieldRetake1, "retake": fieldRetake1, "resit": fieldRetake1, "maymark": fieldRetake1,
	"retake2": fieldRetake2, "resit2": fieldRetake2, "augmark": fieldRetake2,
	"yearofstudy": fieldYearOfStudy, "yearofprogram": fieldYearOfStudy, "yos": fieldYearOfStudy,
	"academicyear": fieldAcademicYear, "session": fieldAcademicYear,
	"firstname": fieldFirstName, "forename": fieldFirstName,
	"lastname": fieldLastName, "surname": fieldLastName,
	"careernumber": fieldCareerNo, "careerno": fieldCareerNo,
	"academicprogram": fieldProgram, "program": fieldProgram, "programme": fieldProgram,
	"programdescription": fieldProgramDesc, "programdesc": fieldProgramDesc,
	"academicplan": fieldPlan, "plan": fieldPlan,
	"plandescription": fieldPlanDesc, "plandesc": fieldPlanDesc,
	"intake": fieldIntake,
	"qaa": fieldQAA, "qaaeffectivedate": fieldQAA,
	"degreecalculationmodel": fieldCalcModel, "calcmodel": fieldCalcModel, "calculationmodel": fieldCalcModel,
	"intakeyear": fieldIntakeYear,
	"credit": fieldCredit, "credits": fieldCredit,
	"name": fieldName, "modulename": fieldName, "title": fieldName, "moduletitle": fieldName,
	"term": fieldTerm, "semester": fieldTerm,
}

func squash(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type columns map[field]int

func mapColumns(header []string) columns {
	cols := columns{}
	for i, h := range header {
		if f, ok := aliases[squash(h)]; ok {
			if _, seen := cols[f]; !seen {
				cols[f] = i
			}
		}
	}
	return cols
}

func (c columns) index(f field) int {
	if idx, ok := c[f]; ok {
		return idx
	}
	return -1
}

func (c columns) require(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if _, ok := c[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Normalizer converts tables into typed batches.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// NormalizeFile reads path and normalises it as dataType rows for year.
func (n *Normalizer) NormalizeFile(dataType models.DataType, year models.AcademicYear, path string) (*Batch, error) {
	table, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return n.Normalize(dataType, year, table)
}

// Normalize validates table against the columns dataType needs. Structural problems
// return an error; problems with individual rows become diagnostics.
func (n *Normalizer) Normalize(dataType models.DataType, year models.AcademicYear, table *Table) (*Batch, error) {
	if !year.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidAcademicYear, year)
	}
	cols := mapColumns(table.Header)
	batch := &Batch{DataType: dataType, Year: year}

	var err error
	switch dataType {
	case models.DataTypeResult, models.DataTypeResitMay, models.DataTypeResitAug:
		err = n.marks(batch, cols, table)
	case models.DataTypeAward:
		err = n.students(batch, cols, table)
	case models.DataTypeModules:
		err = n.modules(batch, cols, table)
	default:
		err = fmt.Errorf("unknown data type %q", dataType)
	}
	if err != nil {
		return nil, err
	}

	n.logger.Debug("sheet normalised",
		zap.String("data_type", string(dataType)),
		zap.Int("rows", len(table.Rows)),
		zap.Int("records", batch.Rows()),
		zap.Int("rejected", len(batch.Diagnostics)),
	)
	return batch, nil
}

// valueField picks the column carrying the attempt a mark sheet records. Resit sheets
// may label that column plainly as "Mark".
func valueField(dataType models.DataType, cols columns) (field, error) {
	switch dataType {
	case models.DataTypeResitMay:
		if _, ok := cols[fieldRetake1]; ok {
			return fieldRetake1, nil
		}
	case models.DataTypeResitAug:
		if _, ok := cols[fieldRetake2]; ok {
			return fieldRetake2, nil
		}
	}
	return fieldMark, cols.require(fieldMark)
}

func (n *Normalizer) marks(batch *Batch, cols columns, table *Table) error {
	if err := cols.require(fieldStudentID, fieldModuleCode); err != nil {
		return err
	}
	value, err := valueField(batch.DataType, cols)
	if err != nil {
		return err
	}

	seen := map[string]int{}
	for _, row := range table.Rows {
		studentID := row.Cell(cols.index(fieldStudentID))
		code := strings.ToUpper(row.Cell(cols.index(fieldModuleCode)))
		reject := func(reason string) {
			batch.Diagnostics = append(batch.Diagnostics, models.RowDiagnostic{
				Row: row.Number, StudentID: studentID, ModuleCode: code, Code: models.DiagnosticValidation, Reason: reason,
			})
		}

		if studentID == "" {
			reject("student id is empty")
			continue
		}
		if code == "" {
			reject("module code is empty")
			continue
		}
		if reason := n.yearMismatch(row, cols, batch.Year); reason != "" {
			reject(reason)
			continue
		}
		key := studentID + "\x00" + code
		if first, dup := seen[key]; dup {
			reject(fmt.Sprintf("duplicate of row %d", first))
			continue
		}

		raw := row.Cell(cols.index(value))
		if raw == "" {
			reject(fmt.Sprintf("%s is empty", value))
			continue
		}
		mark, err := parseMark(raw)
		if err != nil {
			reject(fmt.Sprintf("%s %q is not a number", value, raw))
			continue
		}

		rec := models.RawMarkRecord{
			Row:          row.Number,
			StudentID:    studentID,
			ModuleCode:   code,
			AcademicYear: batch.Year,
			Fill:         row.Fill(cols.index(value)),
			FirstName:    row.Cell(cols.index(fieldFirstName)),
			LastName:     row.Cell(cols.index(fieldLastName)),
			Plan:         optional(row.Cell(cols.index(fieldPlan))),
		}
		switch value {
		case fieldRetake1:
			rec.Retake1 = &mark
		case fieldRetake2:
			rec.Retake2 = &mark
		default:
			switch batch.DataType {
			case models.DataTypeResitMay:
				rec.Retake1 = &mark
			case models.DataTypeResitAug:
				rec.Retake2 = &mark
			default:
				rec.Mark = &mark
			}
		}
		if batch.DataType == models.DataTypeResult {
			var bad string
			rec.Retake1, bad = optionalNumber(row.Cell(cols.index(fieldRetake1)))
			if bad == "" {
				rec.Retake2, bad = optionalNumber(row.Cell(cols.index(fieldRetake2)))
			}
			if bad != "" {
				reject(fmt.Sprintf("retake %q is not a number", bad))
				continue
			}
		}
		if raw := row.Cell(cols.index(fieldYearOfStudy)); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil || y < 1 {
				reject(fmt.Sprintf("year of study %q is invalid", raw))
				continue
			}
			rec.YearOfStudy = &y
		}

		seen[key] = row.Number
		batch.Marks = append(batch.Marks, rec)
	}
	return nil
}

func (n *Normalizer) students(batch *Batch, cols columns, table *Table) error {
	if err := cols.require(fieldStudentID); err != nil {
		return err
	}
	seen := map[string]int{}
	for _, row := range table.Rows {
		id := row.Cell(cols.index(fieldStudentID))
		reject := func(reason string) {
			batch.Diagnostics = append(batch.Diagnostics, models.RowDiagnostic{
				Row: row.Number, StudentID: id, Code: models.DiagnosticValidation, Reason: reason,
			})
		}
		if id == "" {
			reject("student id is empty")
			continue
		}
		if first, dup := seen[id]; dup {
			reject(fmt.Sprintf("duplicate of row %d", first))
			continue
		}

		rec := models.RawStudentRecord{
			Row:         row.Number,
			ID:          id,
			FirstName:   row.Cell(cols.index(fieldFirstName)),
			LastName:    row.Cell(cols.index(fieldLastName)),
			Program:     optional(row.Cell(cols.index(fieldProgram))),
			ProgramDesc: optional(row.Cell(cols.index(fieldProgramDesc))),
			Plan:        optional(row.Cell(cols.index(fieldPlan))),
			PlanDesc:    optional(row.Cell(cols.index(fieldPlanDesc))),
			Intake:      optional(row.Cell(cols.index(fieldIntake))),
			QAA:         optional(row.Cell(cols.index(fieldQAA))),
		}
		if model := row.Cell(cols.index(fieldCalcModel)); model != "" {
			normalised := strings.ToUpper(model)
			rec.CalcModel = &normalised
		}
		if raw := row.Cell(cols.index(fieldCareerNo)); raw != "" {
			v, err := strconv.ParseInt(strings.TrimSuffix(raw, ".0"), 10, 64)
			if err != nil {
				reject(fmt.Sprintf("career number %q is not an integer", raw))
				continue
			}
			rec.CareerNo = &v
		}
		if raw := row.Cell(cols.index(fieldIntakeYear)); raw != "" {
			y, err := models.ParseAcademicYear(raw)
			if err != nil {
				reject(fmt.Sprintf("intake year %q is invalid", raw))
				continue
			}
			rec.IntakeYear = &y
		}

		seen[id] = row.Number
		batch.Students = append(batch.Students, rec)
	}
	return nil
}

func (n *Normalizer) modules(batch *Batch, cols columns, table *Table) error {
	if err := cols.require(fieldModuleCode, fieldCredit); err != nil {
		return err
	}
	seen := map[string]int{}
	for _, row := range table.Rows {
		code := strings.ToUpper(row.Cell(cols.index(fieldModuleCode)))
		reject := func(reason string) {
			batch.Diagnostics = append(batch.Diagnostics, models.RowDiagnostic{
				Row: row.Number, ModuleCode: code, Code: models.DiagnosticValidation, Reason: reason,
			})
		}
		if code == "" {
			reject("module code is empty")
			continue
		}
		if first, dup := seen[code]; dup {
			reject(fmt.Sprintf("duplicate of row %d", first))
			continue
		}
		raw := row.Cell(cols.index(fieldCredit))
		credit, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
		if err != nil {
			reject(fmt.Sprintf("credit %q is not an integer", raw))
			continue
		}
		if credit <= 0 {
			reject("credit must be positive")
			continue
		}

		seen[code] = row.Number
		batch.Modules = append(batch.Modules, models.RawModuleRecord{
			Row:    row.Number,
			Code:   code,
			Credit: credit,
			Name:   optional(row.Cell(cols.index(fieldName))),
			Term:   models.ParseModuleTerm(row.Cell(cols.index(fieldTerm))),
		})
	}
	return nil
}

func (n *Normalizer) yearMismatch(row Row, cols columns, year models.AcademicYear) string {
	raw := row.Cell(cols.index(fieldAcademicYear))
	if raw == "" {
		return ""
	}
	parsed, err := models.ParseAcademicYear(raw)
	if err != nil {
		return fmt.Sprintf("academic year %q is invalid", raw)
	}
	if parsed != year {
		return fmt.Sprintf("academic year %s does not match upload year %s", parsed, year)
	}
	return ""
}

func parseMark(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
}

// optionalNumber parses an optional numeric cell, returning the raw text when it is malformed.
func optionalNumber(raw string) (*float64, string) {
	if raw == "" {
		return nil, ""
	}
	v, err := parseMark(raw)
	if err != nil {
		return nil, raw
	}
	return &v, ""
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
