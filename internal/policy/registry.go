package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/noah-isme/marksvault/internal/models"
)

// Built-in calculation model identifiers.
const (
	UGStandard = "UG-STANDARD"
	UGLegacy   = "UG-LEGACY"
	PGTaught   = "PG-TAUGHT"
)

func float(v float64) *float64 { return &v }

var undergraduateBands = []Band{
	{Lower: 70, Label: "First"},
	{Lower: 60, Label: "Upper Second"},
	{Lower: 50, Label: "Lower Second"},
	{Lower: 40, Label: "Third"},
	{Lower: 0, Label: "Fail"},
}

// Builtin returns fresh copies of the models that are always registered.
func Builtin() []Policy {
	return []Policy{
		{
			ID:            UGStandard,
			Name:          "Undergraduate honours",
			PassThreshold: 40,
			SeverityBands: []SeverityBand{
				{Lower: 30, Status: models.StatusCF},
				{Lower: 20, Status: models.StatusHF},
				{Lower: 0, Status: models.StatusSF},
			},
			EscalateExhausted:  true,
			RetakeCap:          float(40),
			Bands:              append([]Band(nil), undergraduateBands...),
			BorderlineMargin:   1,
			YearWeights:        []YearWeight{{Year: 1, Weight: 0}, {Year: 2, Weight: 1}, {Year: 3, Weight: 2}},
			MaxFailedCredits:   40,
			MaxCondonedCredits: 20,
		},
		{
			ID:            UGLegacy,
			Name:          "Undergraduate honours (legacy equal weighting)",
			PassThreshold: 40,
			SeverityBands: []SeverityBand{
				{Lower: 30, Status: models.StatusCF},
				{Lower: 20, Status: models.StatusHF},
				{Lower: 0, Status: models.StatusSF},
			},
			EscalateExhausted:  false,
			RetakeCap:          float(40),
			Bands:              append([]Band(nil), undergraduateBands...),
			BorderlineMargin:   2,
			YearWeights:        []YearWeight{{Year: 2, Weight: 1}, {Year: 3, Weight: 1}},
			MaxFailedCredits:   40,
			MaxCondonedCredits: 0,
		},
		{
			ID:            PGTaught,
			Name:          "Taught postgraduate",
			PassThreshold: 50,
			SeverityBands: []SeverityBand{
				{Lower: 40, Status: models.StatusCF},
				{Lower: 25, Status: models.StatusHF},
				{Lower: 0, Status: models.StatusSF},
			},
			EscalateExhausted: true,
			RetakeCap:         float(50),
			Bands: []Band{
				{Lower: 70, Label: "Distinction"},
				{Lower: 60, Label: "Merit"},
				{Lower: 50, Label: "Pass"},
				{Lower: 0, Label: "Fail"},
			},
			BorderlineMargin:   1,
			YearWeights:        []YearWeight{{Year: 1, Weight: 1}},
			MaxFailedCredits:   30,
			MaxCondonedCredits: 15,
		},
	}
}

// Registry resolves calculation model ids to policies.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewRegistry builds a registry holding the built-in models plus extra.
func NewRegistry(extra ...Policy) (*Registry, error) {
	r := &Registry{policies: make(map[string]*Policy)}
	for _, p := range append(Builtin(), extra...) {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates p and adds it. An id that is already registered is rejected.
func (r *Registry) Register(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[p.ID]; ok {
		return fmt.Errorf("%w: %s is already registered", ErrDuplicatePolicy, p.ID)
	}
	r.policies[p.ID] = p.Clone()
	return nil
}

// Lookup returns a copy of the policy for id. There is no fallback model.
func (r *Registry) Lookup(id string) (*Policy, error) {
	key := NormalizeID(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
	}
	return p.Clone(), nil
}

func (r *Registry) has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.policies[id]
	return ok
}

// IDs lists registered model ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type policyFile struct {
	Model []Policy `toml:"model"`
}

// LoadFile registers every [[model]] table in a TOML file.
func (r *Registry) LoadFile(path string) (int, error) {
	var file policyFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return 0, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(file.Model))
	for i := range file.Model {
		if err := file.Model[i].Validate(); err != nil {
			return 0, fmt.Errorf("policy file %s: %w", path, err)
		}
		id := file.Model[i].ID
		if seen[id] || r.has(id) {
			return 0, fmt.Errorf("policy file %s: %w: %s is already registered", path, ErrDuplicatePolicy, id)
		}
		seen[id] = true
	}
	for _, p := range file.Model {
		if err := r.Register(p); err != nil {
			return 0, err
		}
	}
	return len(file.Model), nil
}
