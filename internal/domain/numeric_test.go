package domain

import (
	"math"
	"testing"
)

func TestNumOrZero(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.5, 1.5},
		{0, 0},
		{-2, -2},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
	}
	for _, tc := range cases {
		if got := NumOrZero(tc.in); got != tc.want {
			t.Fatalf("NumOrZero(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestSafeDivNeverProducesNaN(t *testing.T) {
	pairs := []struct {
		num, den, fallback float64
	}{
		{10, 0, 10},
		{0, 0, 0},
		{math.NaN(), 4, 0},
		{5, math.NaN(), 0},
		{1, 2, 0},
		{-3, 0, -3},
	}
	for _, p := range pairs {
		got := SafeDiv(p.num, p.den, p.fallback)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("SafeDiv(%v, %v, %v) produced non-finite %v", p.num, p.den, p.fallback, got)
		}
	}

	if got := SafeDiv(10, 0, 10); got != 10 {
		t.Fatalf("expected zero denominator to fall back to 10, got %v", got)
	}
	if got := SafeDiv(9, 3, 0); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestFixed3Truncates(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.23456, 1.234},
		{1.9999, 1.999},
		{-1.2399, -1.239},
		{2, 2},
		{0.1, 0.1},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := Fixed3(tc.in); got != tc.want {
			t.Fatalf("Fixed3(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
