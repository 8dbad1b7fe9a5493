package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/store"
)

// AuditDiff is a stored derived value that a fresh recompute would change.
type AuditDiff struct {
	StudentID    string              `json:"student_id"`
	AcademicYear models.AcademicYear `json:"academic_year,omitempty"`
	ModuleCode   string              `json:"module_code,omitempty"`
	Field        string              `json:"field"`
	Stored       string              `json:"stored"`
	Recomputed   string              `json:"recomputed"`
}

// AuditReport summarises an audit run.
type AuditReport struct {
	Units    int                  `json:"units"`
	Diffs    []AuditDiff          `json:"diffs"`
	Failures []models.UnitFailure `json:"failures"`
}

// Audit recomputes every stored (student, year) inside a transaction that is rolled back
// and reports each derived value that differs from what is stored. Nothing is written.
func (s *RecomputeService) Audit(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{Diffs: []AuditDiff{}, Failures: []models.UnitFailure{}}
	err := s.store.Simulate(ctx, func(tx *store.Tx) error {
		units, err := tx.Marks.Units(ctx)
		if err != nil {
			return err
		}
		report.Units = len(units)

		before := make(map[string]models.Classification)
		var order []string
		for _, unit := range units {
			if _, seen := before[unit.StudentID]; !seen {
				student, err := tx.Students.FindByID(ctx, unit.StudentID)
				if err != nil {
					return err
				}
				before[unit.StudentID] = student.Classification()
				order = append(order, unit.StudentID)
			}

			marks, err := tx.Marks.ListByUnit(ctx, unit.StudentID, unit.AcademicYear)
			if err != nil {
				return err
			}
			stored, err := tx.Results.Find(ctx, unit.StudentID, unit.AcademicYear)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return err
				}
				stored = nil
			}

			out, err := s.apply(ctx, tx, unit.StudentID, unit.AcademicYear, nil)
			if err != nil {
				if errors.Is(err, store.ErrStore) {
					return err
				}
				report.Failures = append(report.Failures, unitFailure(unit.StudentID, unit.AcademicYear, err))
				continue
			}
			report.Diffs = append(report.Diffs, markDiffs(unit.StudentID, marks, out.Marks)...)
			if out.Result != nil {
				report.Diffs = append(report.Diffs, resultDiffs(unit.StudentID, stored, out.Result)...)
			}
		}

		for _, id := range order {
			student, err := tx.Students.FindByID(ctx, id)
			if err != nil {
				return err
			}
			report.Diffs = append(report.Diffs, classificationDiffs(id, before[id], student.Classification())...)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "audit failed")
	}
	s.logger.Info("audit finished", zap.Int("units", report.Units), zap.Int("diffs", len(report.Diffs)), zap.Int("failures", len(report.Failures)))
	return report, nil
}

func markDiffs(studentID string, stored, recomputed []models.Mark) []AuditDiff {
	byCode := make(map[string]models.Mark, len(stored))
	for _, m := range stored {
		byCode[m.ModuleCode] = m
	}
	var diffs []AuditDiff
	for _, m := range recomputed {
		old, ok := byCode[m.ModuleCode]
		if !ok {
			continue
		}
		add := func(field, a, b string) {
			if a != b {
				diffs = append(diffs, AuditDiff{StudentID: studentID, AcademicYear: m.AcademicYear, ModuleCode: m.ModuleCode, Field: field, Stored: a, Recomputed: b})
			}
		}
		add("status", string(old.Status), string(m.Status))
		add("final_mark", strconv.FormatFloat(old.FinalMark, 'f', -1, 64), strconv.FormatFloat(m.FinalMark, 'f', -1, 64))
		add("retake_pass", strconv.FormatBool(old.RetakePass), strconv.FormatBool(m.RetakePass))
	}
	return diffs
}

func resultDiffs(studentID string, stored, recomputed *models.Result) []AuditDiff {
	if stored == nil {
		return []AuditDiff{{StudentID: studentID, AcademicYear: recomputed.AcademicYear, Field: "result", Stored: "", Recomputed: string(recomputed.Progression)}}
	}
	var diffs []AuditDiff
	add := func(field, a, b string) {
		if a != b {
			diffs = append(diffs, AuditDiff{StudentID: studentID, AcademicYear: recomputed.AcademicYear, Field: field, Stored: a, Recomputed: b})
		}
	}
	add("year_of_study", strconv.Itoa(stored.YearOfStudy), strconv.Itoa(recomputed.YearOfStudy))
	add("autumn_credits", strconv.Itoa(stored.AutumnCredits), strconv.Itoa(recomputed.AutumnCredits))
	add("spring_credits", strconv.Itoa(stored.SpringCredits), strconv.Itoa(recomputed.SpringCredits))
	add("year_credits", strconv.Itoa(stored.YearCredits), strconv.Itoa(recomputed.YearCredits))
	add("year_mean", formatFloat(stored.YearMean), formatFloat(recomputed.YearMean))
	add("failed_credits", strconv.Itoa(stored.FailedCredits), strconv.Itoa(recomputed.FailedCredits))
	add("progression", string(stored.Progression), string(recomputed.Progression))
	add("remarks", deref(stored.Remarks), deref(recomputed.Remarks))
	return diffs
}

func classificationDiffs(studentID string, stored, recomputed models.Classification) []AuditDiff {
	var diffs []AuditDiff
	add := func(field, a, b string) {
		if a != b {
			diffs = append(diffs, AuditDiff{StudentID: studentID, Field: field, Stored: a, Recomputed: b})
		}
	}
	add("raw_mark", formatFloat(stored.RawMark), formatFloat(recomputed.RawMark))
	add("final_mark", formatInt(stored.FinalMark), formatInt(recomputed.FinalMark))
	add("degree_award", deref(stored.DegreeAward), deref(recomputed.DegreeAward))
	add("borderline", strconv.FormatBool(stored.Borderline), strconv.FormatBool(recomputed.Borderline))
	add("calculation", deref(stored.Calculation), deref(recomputed.Calculation))
	add("review_required", strconv.FormatBool(stored.ReviewRequired), strconv.FormatBool(recomputed.ReviewRequired))
	return diffs
}
