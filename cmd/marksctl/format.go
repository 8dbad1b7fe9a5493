package main

import "strconv"

func ptr(s string) *string { return &s }

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func fmtFloat(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	return &s
}

func fmtInt(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}
