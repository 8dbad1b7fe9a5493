package models

// Progression is the year-end decision for a student.
type Progression string

const (
	ProgressionPass        Progression = "Pass"
	ProgressionConditional Progression = "Conditional"
	ProgressionFail        Progression = "Fail"
)

// Result is the year-level aggregate for a (student, academic year).
//
// YearCredits always equals AutumnCredits + SpringCredits.
type Result struct {
	StudentID     string       `db:"student_id" json:"student_id"`
	AcademicYear  AcademicYear `db:"academic_year" json:"academic_year"`
	YearOfStudy   int          `db:"year_of_study" json:"year_of_study"`
	AutumnCredits int          `db:"autumn_credits" json:"autumn_credits"`
	AutumnMean    *float64     `db:"autumn_mean" json:"autumn_mean,omitempty"`
	SpringCredits int          `db:"spring_credits" json:"spring_credits"`
	SpringMean    *float64     `db:"spring_mean" json:"spring_mean,omitempty"`
	YearCredits   int          `db:"year_credits" json:"year_credits"`
	YearMean      *float64     `db:"year_mean" json:"year_mean,omitempty"`
	FailedCredits int          `db:"failed_credits" json:"failed_credits"`
	Progression   Progression  `db:"progression" json:"progression"`
	Remarks       *string      `db:"remarks" json:"remarks,omitempty"`
}
