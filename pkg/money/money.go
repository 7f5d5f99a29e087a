// Package money holds the fixed-point helpers every payroll amount goes through.
//
// All amounts are decimal.Decimal values rounded to cents after each arithmetic
// step. Rounding is half away from zero, which is round-half-up for the
// non-negative amounts payroll produces.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Places int32 = 2

var (
	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
	sixty   = decimal.NewFromInt(60)
)

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// MulRate returns amount × rate rounded to cents. rate is a fraction (0.062 for 6.2%).
func MulRate(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(rate))
}

// PercentOf returns amount × percent/100 rounded to cents.
func PercentOf(amount decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(percent).Div(hundred))
}

func Div(amount decimal.Decimal, divisor int64) (decimal.Decimal, error) {
	if divisor <= 0 {
		return decimal.Decimal{}, fmt.Errorf("money: divisor must be positive: %d", divisor)
	}
	return Round2(amount.Div(decimal.NewFromInt(divisor))), nil
}

func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round2(total)
}

// HoursFromMinutes converts worked minutes to hours rounded to 2 places.
func HoursFromMinutes(minutes int64) decimal.Decimal {
	return Round2(decimal.NewFromInt(minutes).Div(sixty))
}

func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("money: invalid amount %q: %w", raw, err)
	}
	return d, nil
}

func MustParse(raw string) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Text renders an amount with exactly two decimals, the form stored in numeric columns.
func Text(d decimal.Decimal) string {
	return Round2(d).StringFixed(Places)
}
