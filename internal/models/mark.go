package models

import "fmt"

// ModuleStatus is the derived outcome of a module attempt.
type ModuleStatus string

const (
	// StatusPass means the module was passed on the first attempt or a retake.
	StatusPass ModuleStatus = "Pass"
	// StatusCF is a condoned fail.
	StatusCF ModuleStatus = "CF"
	// StatusHF is a hard fail.
	StatusHF ModuleStatus = "HF"
	// StatusSF is a severe fail.
	StatusSF ModuleStatus = "SF"
)

// Rank orders statuses by consequence: Pass < CF < HF < SF.
func (s ModuleStatus) Rank() int {
	switch s {
	case StatusPass:
		return 0
	case StatusCF:
		return 1
	case StatusHF:
		return 2
	case StatusSF:
		return 3
	default:
		return -1
	}
}

// Failed reports whether the status is any fail tier.
func (s ModuleStatus) Failed() bool {
	return s.Rank() > 0
}

// ParseModuleStatus validates a stored status label.
func ParseModuleStatus(raw string) (ModuleStatus, error) {
	status := ModuleStatus(raw)
	if status.Rank() < 0 {
		return "", fmt.Errorf("unknown module status %q", raw)
	}
	return status, nil
}

// Mark is one attempt record for a (student, module, academic year).
type Mark struct {
	StudentID    string       `db:"student_id" json:"student_id"`
	ModuleCode   string       `db:"module_code" json:"module_code"`
	AcademicYear AcademicYear `db:"academic_year" json:"academic_year"`
	Mark         float64      `db:"mark" json:"mark"`
	Retake1      *float64     `db:"retake1" json:"retake1,omitempty"`
	Retake2      *float64     `db:"retake2" json:"retake2,omitempty"`
	Status       ModuleStatus `db:"status" json:"status"`
	RetakePass   bool         `db:"retake_pass" json:"retake_pass"`
	FinalMark    float64      `db:"final_mark" json:"final_mark"`
	Fill         *int64       `db:"fill" json:"fill,omitempty"`
}

// ValidMark reports whether v lies within the 0-100 mark scale.
func ValidMark(v float64) bool {
	return v >= 0 && v <= 100
}
