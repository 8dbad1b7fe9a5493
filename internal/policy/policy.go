// Package policy holds the classification rule tables that calculation models are resolved to.
package policy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/marksvault/internal/models"
)

var (
	// ErrUnknownPolicy is returned when a calculation model id has no registered policy.
	ErrUnknownPolicy = errors.New("unknown calculation model")
	// ErrInvalidPolicy is returned when a policy table is inconsistent.
	ErrInvalidPolicy = errors.New("invalid policy")
	// ErrDuplicatePolicy is returned when a model id is registered twice.
	ErrDuplicatePolicy = errors.New("duplicate calculation model")
)

// SeverityBand assigns Status to failing marks at or above Lower.
type SeverityBand struct {
	Lower  float64             `toml:"lower" json:"lower"`
	Status models.ModuleStatus `toml:"status" json:"status"`
}

// Band is a classification band: truncated marks at or above Lower earn Label.
type Band struct {
	Lower int    `toml:"lower" json:"lower"`
	Label string `toml:"label" json:"label"`
}

// YearWeight weights a year of study's mean in the final mark.
type YearWeight struct {
	Year   int     `toml:"year" json:"year"`
	Weight float64 `toml:"weight" json:"weight"`
}

// Policy is one calculation model. Policies are treated as immutable once registered.
type Policy struct {
	ID                 string         `toml:"id" json:"id"`
	Name               string         `toml:"name" json:"name"`
	PassThreshold      float64        `toml:"pass_threshold" json:"pass_threshold"`
	SeverityBands      []SeverityBand `toml:"severity" json:"severity"`
	EscalateExhausted  bool           `toml:"escalate_exhausted" json:"escalate_exhausted"`
	RetakeCap          *float64       `toml:"retake_cap" json:"retake_cap,omitempty"`
	Bands              []Band         `toml:"bands" json:"bands"`
	BorderlineMargin   float64        `toml:"borderline_margin" json:"borderline_margin"`
	YearWeights        []YearWeight   `toml:"year_weights" json:"year_weights"`
	MaxFailedCredits   int            `toml:"max_failed_credits" json:"max_failed_credits"`
	MaxCondonedCredits int            `toml:"max_condoned_credits" json:"max_condoned_credits"`
	// CondonedPass lets a year whose only failures are condoned progress as Pass
	// instead of Conditional. Off for every built-in model.
	CondonedPass bool `toml:"condoned_pass" json:"condoned_pass"`
}

// Clone returns a deep copy so callers cannot mutate a registered table.
func (p *Policy) Clone() *Policy {
	c := *p
	c.SeverityBands = append([]SeverityBand(nil), p.SeverityBands...)
	c.Bands = append([]Band(nil), p.Bands...)
	c.YearWeights = append([]YearWeight(nil), p.YearWeights...)
	if p.RetakeCap != nil {
		limit := *p.RetakeCap
		c.RetakeCap = &limit
	}
	return &c
}

// NormalizeID canonicalises a calculation model identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Validate checks internal consistency and sorts the band tables descending.
func (p *Policy) Validate() error {
	p.ID = NormalizeID(p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidPolicy)
	}
	if p.PassThreshold <= 0 || p.PassThreshold > 100 {
		return fmt.Errorf("%w: %s pass threshold %.2f outside (0, 100]", ErrInvalidPolicy, p.ID, p.PassThreshold)
	}
	if p.RetakeCap != nil && (*p.RetakeCap < 0 || *p.RetakeCap > 100) {
		return fmt.Errorf("%w: %s retake cap outside [0, 100]", ErrInvalidPolicy, p.ID)
	}
	if p.BorderlineMargin < 0 {
		return fmt.Errorf("%w: %s negative borderline margin", ErrInvalidPolicy, p.ID)
	}

	if len(p.SeverityBands) == 0 {
		return fmt.Errorf("%w: %s has no severity bands", ErrInvalidPolicy, p.ID)
	}
	sort.SliceStable(p.SeverityBands, func(i, j int) bool { return p.SeverityBands[i].Lower > p.SeverityBands[j].Lower })
	for i, band := range p.SeverityBands {
		if !band.Status.Failed() {
			return fmt.Errorf("%w: %s severity status %q must be CF, HF or SF", ErrInvalidPolicy, p.ID, band.Status)
		}
		if band.Lower >= p.PassThreshold {
			return fmt.Errorf("%w: %s severity band %.2f at or above pass threshold", ErrInvalidPolicy, p.ID, band.Lower)
		}
		if i > 0 {
			prev := p.SeverityBands[i-1]
			if prev.Lower == band.Lower {
				return fmt.Errorf("%w: %s duplicate severity bound %.2f", ErrInvalidPolicy, p.ID, band.Lower)
			}
			if band.Status.Rank() < prev.Status.Rank() {
				return fmt.Errorf("%w: %s severity must not decrease as marks fall", ErrInvalidPolicy, p.ID)
			}
		}
	}
	if p.SeverityBands[len(p.SeverityBands)-1].Lower != 0 {
		return fmt.Errorf("%w: %s lowest severity band must start at 0", ErrInvalidPolicy, p.ID)
	}

	if len(p.Bands) == 0 {
		return fmt.Errorf("%w: %s has no classification bands", ErrInvalidPolicy, p.ID)
	}
	sort.SliceStable(p.Bands, func(i, j int) bool { return p.Bands[i].Lower > p.Bands[j].Lower })
	for i, band := range p.Bands {
		if band.Label == "" {
			return fmt.Errorf("%w: %s band at %d has no label", ErrInvalidPolicy, p.ID, band.Lower)
		}
		if band.Lower < 0 || band.Lower > 100 {
			return fmt.Errorf("%w: %s band bound %d outside [0, 100]", ErrInvalidPolicy, p.ID, band.Lower)
		}
		if i > 0 && p.Bands[i-1].Lower == band.Lower {
			return fmt.Errorf("%w: %s duplicate band bound %d", ErrInvalidPolicy, p.ID, band.Lower)
		}
	}
	if p.Bands[len(p.Bands)-1].Lower != 0 {
		return fmt.Errorf("%w: %s lowest band must start at 0", ErrInvalidPolicy, p.ID)
	}

	seen := make(map[int]struct{}, len(p.YearWeights))
	var total float64
	for _, w := range p.YearWeights {
		if w.Year < 1 {
			return fmt.Errorf("%w: %s year weight for year %d", ErrInvalidPolicy, p.ID, w.Year)
		}
		if w.Weight < 0 {
			return fmt.Errorf("%w: %s negative weight for year %d", ErrInvalidPolicy, p.ID, w.Year)
		}
		if _, dup := seen[w.Year]; dup {
			return fmt.Errorf("%w: %s duplicate weight for year %d", ErrInvalidPolicy, p.ID, w.Year)
		}
		seen[w.Year] = struct{}{}
		total += w.Weight
	}
	if total <= 0 {
		return fmt.Errorf("%w: %s needs at least one positive year weight", ErrInvalidPolicy, p.ID)
	}
	sort.SliceStable(p.YearWeights, func(i, j int) bool { return p.YearWeights[i].Year < p.YearWeights[j].Year })

	if p.MaxFailedCredits < 0 || p.MaxCondonedCredits < 0 {
		return fmt.Errorf("%w: %s negative credit ceiling", ErrInvalidPolicy, p.ID)
	}
	return nil
}

// Passes reports whether mark clears the pass threshold.
func (p *Policy) Passes(mark float64) bool {
	return mark >= p.PassThreshold
}

// FailSeverity grades a failed attempt set by its best mark. When EscalateExhausted
// is set and both retakes were sat and failed, the tier goes up by one (SF stays SF).
func (p *Policy) FailSeverity(mark float64, retake1, retake2 *float64) models.ModuleStatus {
	best := mark
	if retake1 != nil && *retake1 > best {
		best = *retake1
	}
	if retake2 != nil && *retake2 > best {
		best = *retake2
	}

	status := p.SeverityBands[len(p.SeverityBands)-1].Status
	for _, band := range p.SeverityBands {
		if best >= band.Lower {
			status = band.Status
			break
		}
	}

	if p.EscalateExhausted && retake1 != nil && retake2 != nil {
		status = escalate(status)
	}
	return status
}

func escalate(s models.ModuleStatus) models.ModuleStatus {
	switch s {
	case models.StatusCF:
		return models.StatusHF
	case models.StatusHF:
		return models.StatusSF
	default:
		return s
	}
}

// Status derives the module status for an attempt set. retakePass is set when
// the first attempt failed and a retake cleared the threshold.
func (p *Policy) Status(mark float64, retake1, retake2 *float64) (status models.ModuleStatus, retakePass bool) {
	if p.Passes(mark) {
		return models.StatusPass, false
	}
	if (retake1 != nil && p.Passes(*retake1)) || (retake2 != nil && p.Passes(*retake2)) {
		return models.StatusPass, true
	}
	return p.FailSeverity(mark, retake1, retake2), false
}

// FinalMark is the mark carried into means: the best of the first attempt and
// each retake, with retakes capped at RetakeCap when one is set.
func (p *Policy) FinalMark(mark float64, retake1, retake2 *float64) float64 {
	best := mark
	for _, r := range []*float64{retake1, retake2} {
		if r == nil {
			continue
		}
		v := *r
		if p.RetakeCap != nil {
			v = math.Min(v, *p.RetakeCap)
		}
		if v > best {
			best = v
		}
	}
	return best
}

// Weight returns the weight of a year of study in the final mark.
func (p *Policy) Weight(yearOfStudy int) float64 {
	for _, w := range p.YearWeights {
		if w.Year == yearOfStudy {
			return w.Weight
		}
	}
	return 0
}

// WeightedYears lists years of study with a positive weight, ascending.
func (p *Policy) WeightedYears() []int {
	years := make([]int, 0, len(p.YearWeights))
	for _, w := range p.YearWeights {
		if w.Weight > 0 {
			years = append(years, w.Year)
		}
	}
	return years
}

// Placement is where a truncated mark lands in the classification bands.
type Placement struct {
	Reached    Band
	Next       *Band
	Borderline bool
}

// Classify places a truncated mark. The band reached is never promoted; when the
// next band up is within BorderlineMargin the placement is flagged borderline.
func (p *Policy) Classify(truncated int) Placement {
	idx := len(p.Bands) - 1
	for i, band := range p.Bands {
		if truncated >= band.Lower {
			idx = i
			break
		}
	}
	placement := Placement{Reached: p.Bands[idx]}
	if idx > 0 {
		next := p.Bands[idx-1]
		placement.Next = &next
		gap := float64(next.Lower - truncated)
		placement.Borderline = p.BorderlineMargin > 0 && gap > 0 && gap <= p.BorderlineMargin
	}
	return placement
}
