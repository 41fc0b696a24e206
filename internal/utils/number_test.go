package utils

import (
	"math"
	"testing"
)

func TestParseFlexibleNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"\t\n", 0, false},
		{"42", 42, true},
		{"1,5", 1.5, true},
		{"1 000", 1000, true},
		{"1_000_000", 1000000, true},
		{"0.25", 0.25, true},
		{"-3,75", -3.75, true},
		{"  12.5  ", 12.5, true},
		{"abc", 0, false},
		{"1,234.56", 1.234, true}, // comma becomes a decimal point; prefix parse
		{"1e3", 1000, true},
		{"Infinity", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseFlexibleNumber(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseFlexibleNumber(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseFlexibleNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatUSDPrice(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{5, "$5.00"},
		{1234.5, "$1,234.50"},
		{0.5, "$0.5000"},
		{0.01, "$0.0100"},
		{0.005, "$0.005000"},
		{0.00512345, "$0.00512345"},
		{0.0051234567, "$0.00512346"}, // capped at eight fraction digits
		{0, "$0.00"},
		{-1, "-$1.00"},
		{math.NaN(), "$0.00"},
	}

	for _, tt := range tests {
		got := FormatUSDPrice(tt.value)
		if got != tt.want {
			t.Errorf("FormatUSDPrice(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestFormatGrouped(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		want     string
	}{
		{0, 2, "0.00"},
		{999, 0, "999"},
		{1000, 0, "1,000"},
		{1234567.89, 2, "1,234,567.89"},
		{100, 2, "100.00"},
	}

	for _, tt := range tests {
		got := FormatGrouped(tt.value, tt.decimals)
		if got != tt.want {
			t.Errorf("FormatGrouped(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
		}
	}
}
