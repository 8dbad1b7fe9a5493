package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/policy"
)

type termTotals struct {
	credits  int
	weighted float64
}

func (t termTotals) mean() *float64 {
	if t.credits == 0 {
		return nil
	}
	m := round6(t.weighted / float64(t.credits))
	return &m
}

// Aggregate builds the year Result from marks whose statuses are already derived.
// Means are credit weighted over final marks; zero-credit modules are left out of
// every denominator but still count towards failures.
func Aggregate(p *policy.Policy, studentID string, year models.AcademicYear, marks []models.Mark, modules map[string]models.Module) models.Result {
	var autumn, spring termTotals
	var tally Tally
	var retakePasses []string

	for _, m := range marks {
		module := modules[m.ModuleCode]
		credit := module.Credit
		if credit < 0 {
			credit = 0
		}

		bucket := &autumn
		if module.Term == models.TermSpring {
			bucket = &spring
		}
		bucket.credits += credit
		bucket.weighted += m.FinalMark * float64(credit)

		switch m.Status {
		case models.StatusSF:
			tally.Severe = true
		case models.StatusHF:
			tally.Hard = true
		case models.StatusCF:
			tally.CondonableCredits += credit
		}
		if m.Status.Failed() {
			tally.Failures++
			tally.FailedCredits += credit
		}
		if m.RetakePass {
			retakePasses = append(retakePasses, m.ModuleCode)
		}
	}

	whole := termTotals{credits: autumn.credits + spring.credits, weighted: autumn.weighted + spring.weighted}
	result := models.Result{
		StudentID:     studentID,
		AcademicYear:  year,
		AutumnCredits: autumn.credits,
		AutumnMean:    autumn.mean(),
		SpringCredits: spring.credits,
		SpringMean:    spring.mean(),
		YearCredits:   whole.credits,
		YearMean:      whole.mean(),
		FailedCredits: tally.FailedCredits,
	}

	progression, condoned := Progress(p, tally)
	result.Progression = progression

	var remarks []string
	sort.Strings(retakePasses)
	for _, code := range retakePasses {
		remarks = append(remarks, "retake pass: "+code)
	}
	if condoned {
		remarks = append(remarks, RemarkCondoned)
	}
	if len(remarks) > 0 {
		joined := strings.Join(remarks, "; ")
		result.Remarks = &joined
	}
	return result
}

// Tally counts the failures in one year.
type Tally struct {
	Severe            bool
	Hard              bool
	Failures          int
	FailedCredits     int
	CondonableCredits int
}

// Progress decides progression. Severity dominates: any severe fail fails the
// year, then the failed-credit ceiling applies. Failures within tolerance give
// Conditional; only a policy with CondonedPass lets condoned fails progress as
// Pass. The second return value reports that every failure was condonable.
func Progress(p *policy.Policy, t Tally) (models.Progression, bool) {
	switch {
	case t.Severe:
		return models.ProgressionFail, false
	case t.FailedCredits > p.MaxFailedCredits:
		return models.ProgressionFail, false
	case t.Failures == 0:
		return models.ProgressionPass, false
	case !t.Hard && t.CondonableCredits <= p.MaxCondonedCredits:
		if p.CondonedPass {
			return models.ProgressionPass, true
		}
		return models.ProgressionConditional, true
	default:
		return models.ProgressionConditional, false
	}
}

// Classify derives the student's final mark and award from their year results.
// For each positively weighted year of study the latest academic year is used.
func Classify(p *policy.Policy, results []models.Result) models.Classification {
	id := p.ID
	c := models.Classification{Calculation: &id}

	latest := make(map[int]models.Result)
	for _, r := range results {
		if r.YearMean == nil {
			continue
		}
		if prev, ok := latest[r.YearOfStudy]; !ok || r.AcademicYear.Start() > prev.AcademicYear.Start() {
			latest[r.YearOfStudy] = r
		}
	}

	var weighted, weights float64
	for _, year := range p.WeightedYears() {
		r, ok := latest[year]
		if !ok {
			c.ReviewRequired = true
			continue
		}
		w := p.Weight(year)
		weighted += w * *r.YearMean
		weights += w
	}
	if weights == 0 {
		return c
	}

	exact := weighted / weights
	raw := round6(exact)
	truncated := truncate(exact)
	final := truncated
	c.RawMark = &raw
	c.TruncatedMark = &truncated
	c.FinalMark = &final

	placement := p.Classify(truncated)
	award := placement.Reached.Label
	c.DegreeAward = &award
	if placement.Borderline && placement.Next != nil {
		c.Borderline = true
		recommendation := placement.Next.Label
		reason := fmt.Sprintf("%d is within %g of %s (%d)", truncated, p.BorderlineMargin, placement.Next.Label, placement.Next.Lower)
		c.Recommendation = &recommendation
		c.BorderlineReason = &reason
	}
	return c
}

// truncate floors a mark. The epsilon only absorbs float noise from the weighted
// sum; it is far below the six decimals marks are stored with.
func truncate(v float64) int {
	return int(math.Floor(v + 1e-9))
}
