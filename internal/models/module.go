package models

import (
	"strings"
	"time"
)

// ModuleTerm identifies the teaching period a module's credits count towards.
type ModuleTerm string

const (
	// TermAutumn is the first teaching period of an academic year.
	TermAutumn ModuleTerm = "AUTUMN"
	// TermSpring is the second teaching period of an academic year.
	TermSpring ModuleTerm = "SPRING"
)

// ParseModuleTerm maps free text onto a term, defaulting to autumn.
func ParseModuleTerm(raw string) ModuleTerm {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SPRING", "SPR", "S", "2":
		return TermSpring
	default:
		return TermAutumn
	}
}

// Module is an entry in the module catalogue.
type Module struct {
	Code      string     `db:"code" json:"code"`
	Credit    int        `db:"credit" json:"credit"`
	Name      *string    `db:"name" json:"name,omitempty"`
	Term      ModuleTerm `db:"term" json:"term"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ModuleFilter narrows module listings.
type ModuleFilter struct {
	Term   ModuleTerm
	Search string
}
