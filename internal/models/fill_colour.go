package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FillColour is an ARGB cell highlight carried through from uploaded workbooks.
// It is presentation metadata and never read by the calculation engine.
type FillColour struct {
	ID    int64 `db:"id" json:"id"`
	Alpha uint8 `db:"alpha" json:"alpha"`
	Red   uint8 `db:"red" json:"red"`
	Green uint8 `db:"green" json:"green"`
	Blue  uint8 `db:"blue" json:"blue"`
}

// ParseFillColour accepts "RRGGBB" or "AARRGGBB" hex, with an optional leading '#'.
func ParseFillColour(raw string) (FillColour, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	switch len(hex) {
	case 6:
		hex = "FF" + hex
	case 8:
	default:
		return FillColour{}, fmt.Errorf("invalid colour %q", raw)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return FillColour{}, fmt.Errorf("invalid colour %q: %w", raw, err)
	}
	return FillColour{
		Alpha: uint8(v >> 24),
		Red:   uint8(v >> 16),
		Green: uint8(v >> 8),
		Blue:  uint8(v),
	}, nil
}

// Hex renders the colour as "AARRGGBB".
func (f FillColour) Hex() string {
	return fmt.Sprintf("%02X%02X%02X%02X", f.Alpha, f.Red, f.Green, f.Blue)
}
