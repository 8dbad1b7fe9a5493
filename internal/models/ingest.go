package models

import (
	"fmt"
	"strings"
)

// DataType tags the kind of sheet being imported.
type DataType string

const (
	// DataTypeResult carries first-attempt marks.
	DataTypeResult DataType = "result"
	// DataTypeResitMay carries first retake marks.
	DataTypeResitMay DataType = "resit-may"
	// DataTypeResitAug carries second retake marks.
	DataTypeResitAug DataType = "resit-aug"
	// DataTypeAward carries student metadata and calculation models for graduating students.
	DataTypeAward DataType = "award"
	// DataTypeModules carries module catalogue entries.
	DataTypeModules DataType = "modules"
)

// ParseDataType normalises a data type tag.
func ParseDataType(raw string) (DataType, error) {
	dt := DataType(strings.ToLower(strings.TrimSpace(raw)))
	switch dt {
	case DataTypeResult, DataTypeResitMay, DataTypeResitAug, DataTypeAward, DataTypeModules:
		return dt, nil
	}
	return "", fmt.Errorf("unknown data type %q", raw)
}

// Diagnostic codes reported against rejected rows.
const (
	DiagnosticValidation = "VALIDATION_ERROR"
	DiagnosticReference  = "REFERENCE_ERROR"
	DiagnosticPolicy     = "POLICY_ERROR"
)

// RawMarkRecord is a typed mark row ready for the engine. Status is never supplied.
type RawMarkRecord struct {
	Row          int          `json:"row"`
	StudentID    string       `json:"student_id"`
	ModuleCode   string       `json:"module_code"`
	AcademicYear AcademicYear `json:"academic_year"`
	YearOfStudy  *int         `json:"year_of_study,omitempty"`
	Mark         *float64     `json:"mark,omitempty"`
	Retake1      *float64     `json:"retake1,omitempty"`
	Retake2      *float64     `json:"retake2,omitempty"`
	Fill         *FillColour  `json:"fill,omitempty"`
	FirstName    string       `json:"first_name,omitempty"`
	LastName     string       `json:"last_name,omitempty"`
	Plan         *string      `json:"plan,omitempty"`
}

// RawStudentRecord is a typed student metadata row.
type RawStudentRecord struct {
	Row         int           `json:"row"`
	ID          string        `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	CareerNo    *int64        `json:"career_no,omitempty"`
	Program     *string       `json:"program,omitempty"`
	ProgramDesc *string       `json:"program_desc,omitempty"`
	Plan        *string       `json:"plan,omitempty"`
	PlanDesc    *string       `json:"plan_desc,omitempty"`
	Intake      *string       `json:"intake,omitempty"`
	QAA         *string       `json:"qaa,omitempty"`
	CalcModel   *string       `json:"calc_model,omitempty"`
	IntakeYear  *AcademicYear `json:"intake_year,omitempty"`
}

// RawModuleRecord is a typed module catalogue row.
type RawModuleRecord struct {
	Row    int        `json:"row"`
	Code   string     `json:"code"`
	Credit int        `json:"credit"`
	Name   *string    `json:"name,omitempty"`
	Term   ModuleTerm `json:"term"`
}

// RowDiagnostic explains why a single input row was rejected.
type RowDiagnostic struct {
	Row        int    `json:"row"`
	StudentID  string `json:"student_id,omitempty"`
	ModuleCode string `json:"module_code,omitempty"`
	Code       string `json:"code"`
	Reason     string `json:"reason"`
}

// UnitFailure reports a (student, year) unit whose commit was abandoned.
type UnitFailure struct {
	StudentID    string       `json:"student_id"`
	AcademicYear AcademicYear `json:"academic_year"`
	Code         string       `json:"code"`
	Reason       string       `json:"reason"`
}

// IngestReport summarises one upload.
type IngestReport struct {
	BatchID      string          `json:"batch_id"`
	DataType     DataType        `json:"data_type"`
	AcademicYear AcademicYear    `json:"academic_year"`
	Accepted     int             `json:"accepted"`
	Rejected     []RowDiagnostic `json:"rejected"`
	Failures     []UnitFailure   `json:"failures"`
}
