package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/policy"
)

const year = models.AcademicYear("2024/2025")

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }
func s(v string) *string   { return &v }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := policy.NewRegistry()
	require.NoError(t, err)
	return New(reg)
}

func catalogue() map[string]models.Module {
	return map[string]models.Module{
		"COMP1001": {Code: "COMP1001", Credit: 20, Term: models.TermAutumn},
		"COMP1002": {Code: "COMP1002", Credit: 20, Term: models.TermSpring},
		"COMP1003": {Code: "COMP1003", Credit: 10, Term: models.TermAutumn},
		"COMP1004": {Code: "COMP1004", Credit: 0, Term: models.TermSpring},
		"COMP1005": {Code: "COMP1005", Credit: 30, Term: models.TermSpring},
	}
}

func student(model string) models.StudentInfo {
	intake := models.AcademicYear("2022/2023")
	return models.StudentInfo{ID: "20001234", FirstName: "Ada", LastName: "Lovelace", CalcModel: s(model), IntakeYear: &intake}
}

func raw(row int, code string, mark *float64, r1, r2 *float64) models.RawMarkRecord {
	return models.RawMarkRecord{Row: row, StudentID: "20001234", ModuleCode: code, AcademicYear: year, Mark: mark, Retake1: r1, Retake2: r2}
}

func TestRecomputeStatusesAndAggregates(t *testing.T) {
	e := newEngine(t)
	out, err := e.Recompute(Input{
		Student: student(policy.UGStandard),
		Year:    year,
		Modules: catalogue(),
		Incoming: []models.RawMarkRecord{
			raw(2, "COMP1001", f(65), nil, nil),
			raw(3, "COMP1002", f(35), nil, nil),
			raw(4, "COMP1003", f(38), f(45), nil),
			raw(5, "COMP1004", f(50), nil, nil),
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Marks, 4)
	assert.Empty(t, out.Rejected)

	byCode := map[string]models.Mark{}
	for _, m := range out.Marks {
		byCode[m.ModuleCode] = m
	}
	assert.Equal(t, models.StatusPass, byCode["COMP1001"].Status)
	assert.Equal(t, models.StatusCF, byCode["COMP1002"].Status)
	assert.Equal(t, models.StatusPass, byCode["COMP1003"].Status)
	assert.True(t, byCode["COMP1003"].RetakePass)
	assert.Equal(t, 40.0, byCode["COMP1003"].FinalMark)
	assert.Equal(t, models.StatusPass, byCode["COMP1004"].Status)

	r := out.Result
	assert.Equal(t, 30, r.AutumnCredits)
	assert.Equal(t, 20, r.SpringCredits)
	assert.Equal(t, r.AutumnCredits+r.SpringCredits, r.YearCredits)
	require.NotNil(t, r.AutumnMean)
	assert.Equal(t, 56.666667, *r.AutumnMean)
	require.NotNil(t, r.SpringMean)
	assert.Equal(t, 35.0, *r.SpringMean)
	require.NotNil(t, r.YearMean)
	assert.Equal(t, 48.0, *r.YearMean)
	assert.Equal(t, 20, r.FailedCredits)
	assert.Equal(t, models.ProgressionConditional, r.Progression)
	require.NotNil(t, r.Remarks)
	assert.Equal(t, "retake pass: COMP1003; condoned", *r.Remarks)
	assert.Equal(t, 3, r.YearOfStudy)
}

func TestRecomputeEscalatesExhaustedRetakes(t *testing.T) {
	e := newEngine(t)
	out, err := e.Recompute(Input{
		Student:  student(policy.UGStandard),
		Year:     year,
		Modules:  catalogue(),
		Incoming: []models.RawMarkRecord{raw(2, "COMP1001", f(35), f(32), f(31))},
	})
	require.NoError(t, err)
	require.Len(t, out.Marks, 1)
	assert.Equal(t, models.StatusHF, out.Marks[0].Status)
	assert.Equal(t, models.ProgressionConditional, out.Result.Progression)

	out, err = e.Recompute(Input{
		Student:  student(policy.UGLegacy),
		Year:     year,
		Modules:  catalogue(),
		Incoming: []models.RawMarkRecord{raw(2, "COMP1001", f(35), f(32), f(31))},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCF, out.Marks[0].Status)
}

func TestProgression(t *testing.T) {
	e := newEngine(t)
	cases := []struct {
		name     string
		incoming []models.RawMarkRecord
		want     models.Progression
	}{
		{"clean pass", []models.RawMarkRecord{raw(2, "COMP1001", f(55), nil, nil)}, models.ProgressionPass},
		{"severe fail dominates", []models.RawMarkRecord{raw(2, "COMP1001", f(55), nil, nil), raw(3, "COMP1003", f(10), nil, nil)}, models.ProgressionFail},
		{"zero credit severe fail", []models.RawMarkRecord{raw(2, "COMP1001", f(55), nil, nil), raw(3, "COMP1004", f(5), nil, nil)}, models.ProgressionFail},
		{"failed credit ceiling", []models.RawMarkRecord{raw(2, "COMP1001", f(35), nil, nil), raw(3, "COMP1005", f(36), nil, nil)}, models.ProgressionFail},
		{"hard fail", []models.RawMarkRecord{raw(2, "COMP1001", f(25), nil, nil)}, models.ProgressionConditional},
		{"condoned fail within limit", []models.RawMarkRecord{raw(2, "COMP1001", f(55), nil, nil), raw(3, "COMP1002", f(35), nil, nil)}, models.ProgressionConditional},
		{"condonable credits exceeded", []models.RawMarkRecord{raw(2, "COMP1005", f(35), nil, nil)}, models.ProgressionConditional},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := e.Recompute(Input{Student: student(policy.UGStandard), Year: year, Modules: catalogue(), Incoming: tc.incoming})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Result.Progression)
			assert.Equal(t, out.Result.AutumnCredits+out.Result.SpringCredits, out.Result.YearCredits)
		})
	}
}

func TestProgressCondonation(t *testing.T) {
	standard := policy.Builtin()[0]
	require.Equal(t, policy.UGStandard, standard.ID)
	require.False(t, standard.CondonedPass)
	lenient := standard
	lenient.CondonedPass = true

	cases := []struct {
		name         string
		p            *policy.Policy
		tally        Tally
		want         models.Progression
		wantCondoned bool
	}{
		{"no failures", &standard, Tally{}, models.ProgressionPass, false},
		{"condoned within limit", &standard, Tally{Failures: 1, FailedCredits: 10, CondonableCredits: 10}, models.ProgressionConditional, true},
		{"condoned pass opted in", &lenient, Tally{Failures: 1, FailedCredits: 10, CondonableCredits: 10}, models.ProgressionPass, true},
		{"hard fail never condoned", &lenient, Tally{Hard: true, Failures: 1, FailedCredits: 10}, models.ProgressionConditional, false},
		{"condonable limit exceeded", &lenient, Tally{Failures: 2, FailedCredits: 30, CondonableCredits: 30}, models.ProgressionConditional, false},
		{"severe dominates", &lenient, Tally{Severe: true, Failures: 1, FailedCredits: 10}, models.ProgressionFail, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, condoned := Progress(tc.p, tc.tally)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantCondoned, condoned)
		})
	}
}

func TestRecomputeZeroCreditExcludedFromMeans(t *testing.T) {
	e := newEngine(t)
	out, err := e.Recompute(Input{
		Student:  student(policy.UGStandard),
		Year:     year,
		Modules:  catalogue(),
		Incoming: []models.RawMarkRecord{raw(2, "COMP1004", f(90), nil, nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Result.YearCredits)
	assert.Nil(t, out.Result.YearMean)
	assert.Nil(t, out.Result.SpringMean)
	assert.Equal(t, models.ProgressionPass, out.Result.Progression)
}

func TestRecomputeTruncatesAndFlagsBorderline(t *testing.T) {
	e := newEngine(t)
	previous := models.Result{StudentID: "20001234", AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(69.7), Progression: models.ProgressionPass}
	out, err := e.Recompute(Input{
		Student:      student(policy.UGStandard),
		Year:         year,
		Modules:      catalogue(),
		Incoming:     []models.RawMarkRecord{raw(2, "COMP1001", f(70), nil, nil), raw(3, "COMP1002", f(70), nil, nil)},
		OtherResults: []models.Result{previous},
	})
	require.NoError(t, err)

	st := out.Student
	require.NotNil(t, st.RawMark)
	assert.Equal(t, 69.9, *st.RawMark)
	require.NotNil(t, st.TruncatedMark)
	assert.Equal(t, 69, *st.TruncatedMark)
	assert.Equal(t, 69, *st.FinalMark)
	assert.True(t, st.Borderline)
	require.NotNil(t, st.DegreeAward)
	assert.Equal(t, "Upper Second", *st.DegreeAward)
	require.NotNil(t, st.Recommendation)
	assert.Equal(t, "First", *st.Recommendation)
	assert.NotNil(t, st.BorderlineReason)
	assert.Equal(t, policy.UGStandard, *st.Calculation)
	assert.False(t, st.ReviewRequired)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newEngine(t)
	in := Input{
		Student: student(policy.UGStandard),
		Year:    year,
		Modules: catalogue(),
		Incoming: []models.RawMarkRecord{
			raw(2, "COMP1002", f(35), nil, nil),
			raw(3, "COMP1001", f(61.25), nil, nil),
			raw(4, "COMP1003", f(12), f(20), f(33)),
		},
		OtherResults: []models.Result{{StudentID: "20001234", AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(58.123456)}},
	}
	first, err := e.Recompute(in)
	require.NoError(t, err)
	second, err := e.Recompute(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	in.Existing = first.Marks
	in.StoredResult = &first.Result
	third, err := e.Recompute(in)
	require.NoError(t, err)
	assert.Equal(t, first.Marks, third.Marks)
	assert.Equal(t, first.Result, third.Result)
	assert.Equal(t, first.Student.Classification(), third.Student.Classification())
}

func TestRecomputeMergesRetakesIntoStoredMarks(t *testing.T) {
	e := newEngine(t)
	existing := []models.Mark{{StudentID: "20001234", ModuleCode: "COMP1001", AcademicYear: year, Mark: 30, Status: models.StatusCF, FinalMark: 30}}
	out, err := e.Recompute(Input{
		Student:  student(policy.UGStandard),
		Year:     year,
		Modules:  catalogue(),
		Existing: existing,
		Incoming: []models.RawMarkRecord{
			raw(2, "COMP1001", nil, f(52), nil),
			raw(3, "COMP1002", nil, f(60), nil),
			raw(4, "COMP1003", f(140), nil, nil),
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Marks, 1)
	assert.Equal(t, 30.0, out.Marks[0].Mark)
	assert.Equal(t, 52.0, *out.Marks[0].Retake1)
	assert.Equal(t, models.StatusPass, out.Marks[0].Status)
	assert.True(t, out.Marks[0].RetakePass)
	assert.Equal(t, 40.0, out.Marks[0].FinalMark)

	require.Len(t, out.Rejected, 2)
	assert.Equal(t, 3, out.Rejected[0].Row)
	assert.Equal(t, "COMP1002", out.Rejected[0].ModuleCode)
	assert.Equal(t, 4, out.Rejected[1].Row)
	assert.Equal(t, models.DiagnosticValidation, out.Rejected[1].Code)
}

func TestRecomputeUnknownReferences(t *testing.T) {
	e := newEngine(t)
	_, err := e.Recompute(Input{
		Student:  student(policy.UGStandard),
		Year:     year,
		Modules:  catalogue(),
		Incoming: []models.RawMarkRecord{raw(7, "MATH9999", f(50), nil, nil)},
	})
	assert.ErrorIs(t, err, ErrReference)
	assert.Contains(t, err.Error(), "MATH9999")

	other := raw(2, "COMP1001", f(50), nil, nil)
	other.StudentID = "someone-else"
	_, err = e.Recompute(Input{Student: student(policy.UGStandard), Year: year, Modules: catalogue(), Incoming: []models.RawMarkRecord{other}})
	assert.ErrorIs(t, err, ErrReference)

	_, err = e.Recompute(Input{Year: year, Modules: catalogue()})
	assert.ErrorIs(t, err, ErrReference)
}

func TestRecomputeUnknownPolicy(t *testing.T) {
	e := newEngine(t)
	_, err := e.Recompute(Input{Student: student("UG-1999"), Year: year, Modules: catalogue()})
	assert.ErrorIs(t, err, ErrPolicy)

	st := student(policy.UGStandard)
	st.CalcModel = nil
	_, err = e.Recompute(Input{Student: st, Year: year, Modules: catalogue()})
	assert.ErrorIs(t, err, ErrPolicy)
}

func TestRecomputeRejectsInvalidYear(t *testing.T) {
	e := newEngine(t)
	_, err := e.Recompute(Input{Student: student(policy.UGStandard), Year: "2024/2026", Modules: catalogue()})
	assert.ErrorIs(t, err, models.ErrInvalidAcademicYear)
}

func TestYearOfStudy(t *testing.T) {
	intake := models.AcademicYear("2021/2022")
	assert.Equal(t, 2, YearOfStudy(i(2), &models.Result{YearOfStudy: 3}, &intake, year))
	assert.Equal(t, 3, YearOfStudy(nil, &models.Result{YearOfStudy: 3}, &intake, year))
	assert.Equal(t, 4, YearOfStudy(nil, nil, &intake, year))
	assert.Equal(t, 1, YearOfStudy(nil, nil, nil, year))
	later := models.AcademicYear("2026/2027")
	assert.Equal(t, 1, YearOfStudy(nil, nil, &later, year))
}

func TestClassifyMissingWeightedYear(t *testing.T) {
	reg, err := policy.NewRegistry()
	require.NoError(t, err)
	p, err := reg.Lookup(policy.UGStandard)
	require.NoError(t, err)

	c := Classify(p, []models.Result{{AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(64.5)}})
	assert.True(t, c.ReviewRequired)
	require.NotNil(t, c.TruncatedMark)
	assert.Equal(t, 64, *c.TruncatedMark)
	assert.Equal(t, "Upper Second", *c.DegreeAward)
	assert.False(t, c.Borderline)
	assert.Nil(t, c.Recommendation)

	c = Classify(p, nil)
	assert.True(t, c.ReviewRequired)
	assert.Nil(t, c.RawMark)
	assert.Nil(t, c.DegreeAward)
	assert.Equal(t, policy.UGStandard, *c.Calculation)
}

func TestClassifyUsesLatestAttemptAtEachYear(t *testing.T) {
	reg, err := policy.NewRegistry()
	require.NoError(t, err)
	p, err := reg.Lookup(policy.UGLegacy)
	require.NoError(t, err)

	c := Classify(p, []models.Result{
		{AcademicYear: "2022/2023", YearOfStudy: 2, YearMean: f(30)},
		{AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(60)},
		{AcademicYear: "2024/2025", YearOfStudy: 3, YearMean: f(58)},
	})
	require.NotNil(t, c.RawMark)
	assert.Equal(t, 59.0, *c.RawMark)
	assert.True(t, c.Borderline)
	assert.Equal(t, "Lower Second", *c.DegreeAward)
	assert.Equal(t, "Upper Second", *c.Recommendation)
}

func TestClassifyTruncatesWithoutRounding(t *testing.T) {
	reg, err := policy.NewRegistry()
	require.NoError(t, err)
	p, err := reg.Lookup(policy.UGStandard)
	require.NoError(t, err)

	c := Classify(p, []models.Result{
		{AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(69.999999)},
		{AcademicYear: "2024/2025", YearOfStudy: 3, YearMean: f(70)},
	})
	require.NotNil(t, c.TruncatedMark)
	assert.Equal(t, 69, *c.TruncatedMark)
	assert.Equal(t, "Upper Second", *c.DegreeAward)
	assert.True(t, c.Borderline)

	c = Classify(p, []models.Result{
		{AcademicYear: "2023/2024", YearOfStudy: 2, YearMean: f(70.1)},
		{AcademicYear: "2024/2025", YearOfStudy: 3, YearMean: f(69.95)},
	})
	require.NotNil(t, c.TruncatedMark)
	assert.Equal(t, 70, *c.TruncatedMark)
	assert.Equal(t, "First", *c.DegreeAward)
}
