package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayType string

const (
	PayTypeHourly PayType = "hourly"
	PayTypeSalary PayType = "salary"
)

type EmployeeCompensation struct {
	ID                       string          `json:"id"`
	WorkspaceID              string          `json:"workspace_id"`
	UserID                   string          `json:"user_id"`
	PayType                  PayType         `json:"pay_type"`
	HourlyRate               decimal.Decimal `json:"hourly_rate"`
	SalaryAmount             decimal.Decimal `json:"salary_amount"`
	PayFrequency             string          `json:"pay_frequency,omitempty"`
	OvertimeEligible         bool            `json:"overtime_eligible"`
	OvertimeRateMultiplier   decimal.Decimal `json:"overtime_rate_multiplier"`
	HealthInsuranceDeduction decimal.Decimal `json:"health_insurance_deduction"`
	Retirement401kPercent    decimal.Decimal `json:"retirement_401k_percent"`
	PaymentMethod            string          `json:"payment_method,omitempty"`
	EffectiveDate            time.Time       `json:"effective_date"`
	EndDate                  *time.Time      `json:"end_date,omitempty"`
	IsActive                 bool            `json:"is_active"`
	CreatedAt                time.Time       `json:"created_at"`
}

var hundred = decimal.NewFromInt(100)

// Validate rejects compensation that cannot produce a meaningful payroll record.
func (c EmployeeCompensation) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidCompensation)
	}
	switch c.PayType {
	case PayTypeHourly:
		if !c.HourlyRate.IsPositive() {
			return fmt.Errorf("%w: hourly_rate must be positive", ErrInvalidCompensation)
		}
	case PayTypeSalary:
		if !c.SalaryAmount.IsPositive() {
			return fmt.Errorf("%w: salary_amount must be positive", ErrInvalidCompensation)
		}
	default:
		return fmt.Errorf("%w: unknown pay_type %q", ErrInvalidCompensation, c.PayType)
	}
	if c.OvertimeEligible && c.OvertimeRateMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: overtime_rate_multiplier must be at least 1", ErrInvalidCompensation)
	}
	if c.HealthInsuranceDeduction.IsNegative() {
		return fmt.Errorf("%w: health_insurance_deduction must not be negative", ErrInvalidCompensation)
	}
	if c.Retirement401kPercent.IsNegative() || c.Retirement401kPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: retirement_401k_percent must be within [0,100]", ErrInvalidCompensation)
	}
	if c.EndDate != nil && c.EndDate.Before(DateOnly(c.EffectiveDate)) {
		return fmt.Errorf("%w: end_date must not be before effective_date", ErrInvalidCompensation)
	}
	return nil
}

// InEffectDuring reports whether the record is active and overlaps [start, end].
func (c EmployeeCompensation) InEffectDuring(start, end time.Time) bool {
	if !c.IsActive {
		return false
	}
	if DateOnly(c.EffectiveDate).After(DateOnly(end)) {
		return false
	}
	if c.EndDate != nil && DateOnly(*c.EndDate).Before(DateOnly(start)) {
		return false
	}
	return true
}

// LatestPerEmployee keeps one record per user: the latest effective_date wins,
// ties go to the greater id. Ids are UUIDv7, so the greater id is the newer row.
// Output is ordered by user id.
func LatestPerEmployee(records []EmployeeCompensation) []EmployeeCompensation {
	byUser := make(map[string]EmployeeCompensation, len(records))
	for _, rec := range records {
		cur, ok := byUser[rec.UserID]
		if !ok || supersedes(rec, cur) {
			byUser[rec.UserID] = rec
		}
	}
	out := make([]EmployeeCompensation, 0, len(byUser))
	for _, rec := range byUser {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func supersedes(a, b EmployeeCompensation) bool {
	ae, be := DateOnly(a.EffectiveDate), DateOnly(b.EffectiveDate)
	if !ae.Equal(be) {
		return ae.After(be)
	}
	return a.ID > b.ID
}
