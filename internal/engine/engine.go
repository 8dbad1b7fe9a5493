// Package engine derives module statuses, year results and degree classifications from raw marks.
//
// Everything here is pure: callers load state from the store, call Recompute, and
// persist the output inside one transaction.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/policy"
)

var (
	// ErrReference marks a raw row naming a student or module that does not exist.
	ErrReference = errors.New("unknown reference")
	// ErrPolicy marks a student whose calculation model cannot be resolved.
	ErrPolicy = errors.New("calculation model unavailable")
)

// RemarkCondoned is appended to a result whose failures were all within the condonation limit.
const RemarkCondoned = "condoned"

// PolicyResolver resolves calculation model ids.
type PolicyResolver interface {
	Lookup(id string) (*policy.Policy, error)
}

// Input is everything needed to recompute one (student, academic year).
type Input struct {
	Student      models.StudentInfo
	Year         models.AcademicYear
	Modules      map[string]models.Module
	Existing     []models.Mark
	Incoming     []models.RawMarkRecord
	StoredResult *models.Result
	OtherResults []models.Result
}

// Output is the replacement state for the (student, academic year) plus the student's classification.
type Output struct {
	Policy   *policy.Policy
	Marks    []models.Mark
	Result   models.Result
	Student  models.StudentInfo
	Rejected []models.RowDiagnostic
}

// Engine applies calculation models.
type Engine struct {
	policies PolicyResolver
}

// New constructs an Engine.
func New(policies PolicyResolver) *Engine {
	return &Engine{policies: policies}
}

// PolicyFor resolves the student's own calculation model.
func (e *Engine) PolicyFor(student models.StudentInfo) (*policy.Policy, error) {
	if student.CalcModel == nil || strings.TrimSpace(*student.CalcModel) == "" {
		return nil, fmt.Errorf("%w: student %s has no calculation model", ErrPolicy, student.ID)
	}
	p, err := e.policies.Lookup(*student.CalcModel)
	if err != nil {
		return nil, fmt.Errorf("%w: student %s: %v", ErrPolicy, student.ID, err)
	}
	return p, nil
}

// Recompute merges incoming raw marks into the stored marks for the year, re-derives
// every status, rebuilds the year Result from scratch and reclassifies the student.
// Rows with out-of-range marks or missing first attempts are rejected individually;
// references to unknown students or modules fail the whole unit.
func (e *Engine) Recompute(in Input) (*Output, error) {
	if in.Student.ID == "" {
		return nil, fmt.Errorf("%w: student missing", ErrReference)
	}
	if _, err := models.ParseAcademicYear(string(in.Year)); err != nil {
		return nil, err
	}
	p, err := e.PolicyFor(in.Student)
	if err != nil {
		return nil, err
	}

	out := &Output{Policy: p}
	marks := make(map[string]models.Mark, len(in.Existing)+len(in.Incoming))
	for _, m := range in.Existing {
		marks[m.ModuleCode] = m
	}

	var explicitYear *int
	for _, raw := range in.Incoming {
		if raw.StudentID != in.Student.ID {
			return nil, fmt.Errorf("%w: row %d names student %q outside unit %s", ErrReference, raw.Row, raw.StudentID, in.Student.ID)
		}
		if raw.AcademicYear != in.Year {
			return nil, fmt.Errorf("%w: row %d names year %s outside unit %s", ErrReference, raw.Row, raw.AcademicYear, in.Year)
		}
		if _, ok := in.Modules[raw.ModuleCode]; !ok {
			return nil, fmt.Errorf("%w: row %d module %q", ErrReference, raw.Row, raw.ModuleCode)
		}
		if reason := invalidMarks(raw); reason != "" {
			out.Rejected = append(out.Rejected, diagnostic(raw, models.DiagnosticValidation, reason))
			continue
		}

		current, exists := marks[raw.ModuleCode]
		if !exists {
			if raw.Mark == nil {
				out.Rejected = append(out.Rejected, diagnostic(raw, models.DiagnosticValidation, "no first attempt recorded for module"))
				continue
			}
			current = models.Mark{StudentID: in.Student.ID, ModuleCode: raw.ModuleCode, AcademicYear: in.Year}
		}
		if raw.Mark != nil {
			current.Mark = *raw.Mark
		}
		if raw.Retake1 != nil {
			current.Retake1 = copyFloat(raw.Retake1)
		}
		if raw.Retake2 != nil {
			current.Retake2 = copyFloat(raw.Retake2)
		}
		marks[raw.ModuleCode] = current

		if raw.YearOfStudy != nil && explicitYear == nil {
			y := *raw.YearOfStudy
			explicitYear = &y
		}
	}

	codes := make([]string, 0, len(marks))
	for code := range marks {
		if _, ok := in.Modules[code]; !ok {
			return nil, fmt.Errorf("%w: stored mark for module %q", ErrReference, code)
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out.Marks = make([]models.Mark, 0, len(codes))
	for _, code := range codes {
		m := marks[code]
		m.Status, m.RetakePass = p.Status(m.Mark, m.Retake1, m.Retake2)
		m.FinalMark = p.FinalMark(m.Mark, m.Retake1, m.Retake2)
		out.Marks = append(out.Marks, m)
	}

	out.Result = Aggregate(p, in.Student.ID, in.Year, out.Marks, in.Modules)
	out.Result.YearOfStudy = YearOfStudy(explicitYear, in.StoredResult, in.Student.IntakeYear, in.Year)

	results := make([]models.Result, 0, len(in.OtherResults)+1)
	for _, r := range in.OtherResults {
		if r.AcademicYear != in.Year {
			results = append(results, r)
		}
	}
	results = append(results, out.Result)

	out.Student = in.Student
	out.Student.ApplyClassification(Classify(p, results))
	return out, nil
}

// Reclassify recomputes only the student's classification from stored results.
func (e *Engine) Reclassify(student models.StudentInfo, results []models.Result) (models.StudentInfo, error) {
	p, err := e.PolicyFor(student)
	if err != nil {
		return student, err
	}
	student.ApplyClassification(Classify(p, results))
	return student, nil
}

// YearOfStudy picks the explicit year, then the stored one, then derives it from the intake year.
func YearOfStudy(explicit *int, stored *models.Result, intake *models.AcademicYear, year models.AcademicYear) int {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	if stored != nil && stored.YearOfStudy > 0 {
		return stored.YearOfStudy
	}
	if intake != nil && intake.Start() > 0 && year.Start() > 0 {
		if y := year.Start() - intake.Start() + 1; y > 1 {
			return y
		}
	}
	return 1
}

func invalidMarks(raw models.RawMarkRecord) string {
	for _, field := range []struct {
		name  string
		value *float64
	}{{"mark", raw.Mark}, {"retake1", raw.Retake1}, {"retake2", raw.Retake2}} {
		if field.value != nil && !models.ValidMark(*field.value) {
			return fmt.Sprintf("%s %.2f outside 0-100", field.name, *field.value)
		}
	}
	if raw.Mark == nil && raw.Retake1 == nil && raw.Retake2 == nil {
		return "row carries no mark"
	}
	return ""
}

func diagnostic(raw models.RawMarkRecord, code, reason string) models.RowDiagnostic {
	return models.RowDiagnostic{Row: raw.Row, StudentID: raw.StudentID, ModuleCode: raw.ModuleCode, Code: code, Reason: reason}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
