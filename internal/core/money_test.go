package core

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseFloatOrZero(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"50", 50},
		{" 1.5 ", 1.5},
		{"0", 0},
		{"-3", -3},
		{"", 0},
		{"abc", 0},
		{"1,5", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"1e2", 100},
	}
	for _, tc := range cases {
		if got := ParseFloatOrZero(tc.in); got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestCoerceAny(t *testing.T) {
	cases := []struct {
		in  any
		out float64
	}{
		{nil, 0},
		{12.5, 12.5},
		{"50", 50},
		{"x", 0},
		{true, 1},
		{false, 0},
		{json.Number("7"), 7},
		{[]any{1}, 0},
		{map[string]any{}, 0},
		{math.NaN(), 0},
	}
	for i, tc := range cases {
		if got := CoerceAny(tc.in); got != tc.out {
			t.Fatalf("case %d (%v) expected %v, got %v", i, tc.in, tc.out, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:        "0.00 €",
		11.55:    "11.55 €",
		121:      "121.00 €",
		-77:      "-77.00 €",
		1234.567: "1234.57 €",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FormatAmount(math.NaN()); got != "0.00 €" {
		t.Fatalf("NaN should format as zero, got %q", got)
	}
}

func TestRoundAmount(t *testing.T) {
	if got := RoundAmount(11.549999); got != 11.55 {
		t.Fatalf("RoundAmount = %v", got)
	}
}
