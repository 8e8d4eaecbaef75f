package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountFromNumerics(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{float64(12.5), 12.5},
		{int(42), 42},
		{int64(7), 7},
		{"19.99", 19.99},
		{" 3.50 ", 3.5},
		{json.Number("0.07"), 0.07},
		{decimal.NewFromFloat(5.25), 5.25},
	}
	for _, tc := range cases {
		got, err := Amount(tc.in)
		if err != nil {
			t.Fatalf("Amount(%v): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Amount(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAmountRejectsGarbage(t *testing.T) {
	for _, in := range []any{nil, "", "abc", "12.3.4", math.NaN(), math.Inf(1), struct{}{}} {
		if _, err := Amount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Amount(%v): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestAmountNeverCoercesToZeroSilently(t *testing.T) {
	got, err := Amount("not-a-number")
	if err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	if got != 0 {
		t.Fatalf("failed parse should return zero value with error, got %v", got)
	}
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{-1.005, -1.01},
		{107.2425, 107.24},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
