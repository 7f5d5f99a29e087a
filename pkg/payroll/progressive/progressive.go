package progressive

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/shopspring/decimal"
)

var ErrInvalidBrackets = errors.New("progressive: invalid brackets")

type Bracket struct {
	MinIncome decimal.Decimal
	// MaxIncome nil means unbounded.
	MaxIncome *decimal.Decimal
	Rate      decimal.Decimal
}

func Sorted(brackets []Bracket) []Bracket {
	out := make([]Bracket, len(brackets))
	copy(out, brackets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinIncome.LessThan(out[j].MinIncome)
	})
	return out
}

// Validate checks that brackets, sorted by MinIncome, are contiguous and non-overlapping.
func Validate(brackets []Bracket) error {
	sorted := Sorted(brackets)
	one := decimal.NewFromInt(1)
	for i, b := range sorted {
		if b.MinIncome.IsNegative() {
			return fmt.Errorf("%w: bracket %d min_income is negative", ErrInvalidBrackets, i)
		}
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return fmt.Errorf("%w: bracket %d rate out of range: %s", ErrInvalidBrackets, i, b.Rate)
		}
		if b.MaxIncome != nil && !b.MaxIncome.GreaterThan(b.MinIncome) {
			return fmt.Errorf("%w: bracket %d max_income must be greater than min_income", ErrInvalidBrackets, i)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.MaxIncome == nil {
			return fmt.Errorf("%w: unbounded bracket must be last", ErrInvalidBrackets)
		}
		if !prev.MaxIncome.Equal(b.MinIncome) {
			return fmt.Errorf("%w: gap or overlap between %s and %s", ErrInvalidBrackets, prev.MaxIncome, b.MinIncome)
		}
	}
	return nil
}

// Compute returns marginal tax on gross: each bracket taxes only the slice of gross inside it.
func Compute(gross decimal.Decimal, brackets []Bracket) (decimal.Decimal, error) {
	if gross.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("progressive: gross must be non-negative: %s", gross)
	}
	if err := Validate(brackets); err != nil {
		return decimal.Decimal{}, err
	}

	total := decimal.Zero
	for _, b := range Sorted(brackets) {
		if !b.MinIncome.LessThan(gross) {
			continue
		}
		upper := gross
		if b.MaxIncome != nil && b.MaxIncome.LessThan(gross) {
			upper = *b.MaxIncome
		}
		total = total.Add(money.MulRate(upper.Sub(b.MinIncome), b.Rate))
	}
	return money.Round2(total), nil
}

func Flat(gross decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	if gross.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("progressive: gross must be non-negative: %s", gross)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("progressive: flat rate out of range: %s", rate)
	}
	return money.MulRate(gross, rate), nil
}
