package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidAcademicYear is returned when an academic year label is malformed.
var ErrInvalidAcademicYear = errors.New("invalid academic year")

var academicYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// AcademicYear is a label of the form "YYYY/YYYY+1", e.g. "2024/2025".
type AcademicYear string

// ParseAcademicYear validates raw and returns it as an AcademicYear.
func ParseAcademicYear(raw string) (AcademicYear, error) {
	m := academicYearPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("%w: %q must be two 4-digit years separated by \"/\"", ErrInvalidAcademicYear, raw)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return "", fmt.Errorf("%w: %q must end one year after it starts (expected %d)", ErrInvalidAcademicYear, raw, start+1)
	}
	return AcademicYear(raw), nil
}

// NewAcademicYear builds the academic year starting in start.
func NewAcademicYear(start int) AcademicYear {
	return AcademicYear(fmt.Sprintf("%04d/%04d", start, start+1))
}

// Start returns the first calendar year, or 0 when the label is invalid.
func (y AcademicYear) Start() int {
	m := academicYearPattern.FindStringSubmatch(string(y))
	if m == nil {
		return 0
	}
	start, _ := strconv.Atoi(m[1])
	return start
}

// Valid reports whether the label passes ParseAcademicYear.
func (y AcademicYear) Valid() bool {
	_, err := ParseAcademicYear(string(y))
	return err == nil
}

func (y AcademicYear) String() string {
	return string(y)
}
