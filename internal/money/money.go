package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a value cannot be interpreted as a monetary amount.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Amount normalizes heterogeneous numeric input into major currency units.
// It accepts native numerics, numeric strings, decimal values, and anything
// exposing a string conversion. Parse failures and non-finite values are
// surfaced as errors so callers treat them as validation failures, never as zero.
func Amount(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrInvalidAmount)
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case decimal.Decimal:
		f, _ := t.Float64()
		return finite(f)
	case *decimal.Decimal:
		if t == nil {
			return 0, fmt.Errorf("%w: nil decimal", ErrInvalidAmount)
		}
		f, _ := t.Float64()
		return finite(f)
	case json.Number:
		return parse(t.String())
	case string:
		return parse(t)
	case fmt.Stringer:
		return parse(t.String())
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ToDecimal converts a major-unit float into an exact decimal value.
func ToDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// FromDecimal converts a decimal into a major-unit float rounded to two places.
func FromDecimal(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func parse(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	f, _ := d.Float64()
	return finite(f)
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidAmount)
	}
	return f, nil
}
