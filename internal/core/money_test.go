package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCost(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{"1.005", "1.005", true}, // no rounding
		{" 2.50 ", "2.5", true},
		{"15.", "15", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{".", "", false},
		{"abc", "", false},
		{"1e3", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseCost(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidCost) {
				t.Fatalf("%q expected ErrInvalidCost, got %v", tc.in, err)
			}
		}
	}
}

func TestFormatCost(t *testing.T) {
	if got := FormatCost(decimal.RequireFromString("55.5")); got != "55.50" {
		t.Fatalf("expected 55.50, got %s", got)
	}
	if got := FormatCost(decimal.RequireFromString("0.125")); got != "0.13" {
		t.Fatalf("expected 0.13, got %s", got)
	}
}
