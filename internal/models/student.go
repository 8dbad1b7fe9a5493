package models

import "time"

// StudentInfo holds enrolment metadata and the classification derived from a student's results.
//
// The derived block is written by the calculation engine only. Selected and
// ExceptionData are stamped by the override path and never by recompute.
type StudentInfo struct {
	ID             string        `db:"id" json:"id"`
	FirstName      string        `db:"first_name" json:"first_name"`
	LastName       string        `db:"last_name" json:"last_name"`
	CareerNo       *int64        `db:"career_no" json:"career_no,omitempty"`
	Program        *string       `db:"program" json:"program,omitempty"`
	ProgramDesc    *string       `db:"program_desc" json:"program_desc,omitempty"`
	Plan           *string       `db:"plan" json:"plan,omitempty"`
	PlanDesc       *string       `db:"plan_desc" json:"plan_desc,omitempty"`
	Intake         *string       `db:"intake" json:"intake,omitempty"`
	QAA            *string       `db:"qaa" json:"qaa,omitempty"`
	CalcModel      *string       `db:"calc_model" json:"calc_model,omitempty"`
	IntakeYear     *AcademicYear `db:"intake_year" json:"intake_year,omitempty"`
	GraduationYear *AcademicYear `db:"graduation_year" json:"graduation_year,omitempty"`

	RawMark          *float64 `db:"raw_mark" json:"raw_mark,omitempty"`
	TruncatedMark    *int     `db:"truncated_mark" json:"truncated_mark,omitempty"`
	FinalMark        *int     `db:"final_mark" json:"final_mark,omitempty"`
	Borderline       bool     `db:"borderline" json:"borderline"`
	BorderlineReason *string  `db:"borderline_reason" json:"borderline_reason,omitempty"`
	Calculation      *string  `db:"calculation" json:"calculation,omitempty"`
	DegreeAward      *string  `db:"degree_award" json:"degree_award,omitempty"`
	Recommendation   *string  `db:"recommendation" json:"recommendation,omitempty"`
	ReviewRequired   bool     `db:"review_required" json:"review_required"`

	Selected      bool    `db:"selected" json:"selected"`
	ExceptionData *string `db:"exception_data" json:"exception_data,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Classification is the engine-owned subset of StudentInfo.
type Classification struct {
	RawMark          *float64 `json:"raw_mark,omitempty"`
	TruncatedMark    *int     `json:"truncated_mark,omitempty"`
	FinalMark        *int     `json:"final_mark,omitempty"`
	Borderline       bool     `json:"borderline"`
	BorderlineReason *string  `json:"borderline_reason,omitempty"`
	Calculation      *string  `json:"calculation,omitempty"`
	DegreeAward      *string  `json:"degree_award,omitempty"`
	Recommendation   *string  `json:"recommendation,omitempty"`
	ReviewRequired   bool     `json:"review_required"`
}

// Classification extracts the derived fields.
func (s *StudentInfo) Classification() Classification {
	return Classification{
		RawMark:          s.RawMark,
		TruncatedMark:    s.TruncatedMark,
		FinalMark:        s.FinalMark,
		Borderline:       s.Borderline,
		BorderlineReason: s.BorderlineReason,
		Calculation:      s.Calculation,
		DegreeAward:      s.DegreeAward,
		Recommendation:   s.Recommendation,
		ReviewRequired:   s.ReviewRequired,
	}
}

// ApplyClassification overwrites the derived fields, leaving override stamps untouched.
func (s *StudentInfo) ApplyClassification(c Classification) {
	s.RawMark = c.RawMark
	s.TruncatedMark = c.TruncatedMark
	s.FinalMark = c.FinalMark
	s.Borderline = c.Borderline
	s.BorderlineReason = c.BorderlineReason
	s.Calculation = c.Calculation
	s.DegreeAward = c.DegreeAward
	s.Recommendation = c.Recommendation
	s.ReviewRequired = c.ReviewRequired
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	CalcModel  string
	Borderline *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination describes a page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
